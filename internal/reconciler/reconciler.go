// Package reconciler applies the upstream registry's change stream to the
// local record store. The upstream system stays authoritative: a payload for
// a known record overwrites local state through the same close-then-append
// status path user mutations take, and a tombstone deletes unconditionally.
//
// Every write is keyed by the record id and the status's own id, which is
// what makes redelivery of the same notification converge instead of
// duplicating status entries.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deltaker/internal/participant"
	"deltaker/internal/platform/metrics"
	"deltaker/internal/registry"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// Outcome labels what one notification did, for metrics and tests.
type Outcome string

const (
	OutcomeTombstoned Outcome = "tombstoned"
	OutcomeInserted   Outcome = "inserted"
	OutcomeUpdated    Outcome = "updated"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeDropped    Outcome = "dropped"
	OutcomeMalformed  Outcome = "malformed"
)

// Reconciler applies one upstream notification at a time. The consumer
// guarantees per-key ordering; the reconciler itself is stateless.
type Reconciler struct {
	store    participant.Store
	persons  registry.PersonClient
	programs registry.GjennomforingClient
	enabled  map[id.Tiltakstype]bool
	logger   *slog.Logger
	metrics  *metrics.Metrics

	Now func() time.Time
}

func NewReconciler(
	store participant.Store,
	persons registry.PersonClient,
	programs registry.GjennomforingClient,
	enabledTiltakstyper []id.Tiltakstype,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	if persons == nil || programs == nil {
		return nil, fmt.Errorf("person and program clients are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	enabled := make(map[id.Tiltakstype]bool, len(enabledTiltakstyper))
	for _, t := range enabledTiltakstyper {
		enabled[t] = true
	}
	return &Reconciler{
		store:    store,
		persons:  persons,
		programs: programs,
		enabled:  enabled,
		logger:   logger,
		metrics:  m,
		Now:      time.Now,
	}, nil
}

// Handle processes one notification. A nil error means the message is done
// and its offset may be committed; malformed messages are logged and dropped
// rather than retried, because redelivery cannot fix them. A non-nil error
// signals a transient failure the consumer must redeliver.
func (r *Reconciler) Handle(ctx context.Context, key string, value []byte) (Outcome, error) {
	started := r.Now()
	outcome, err := r.handle(ctx, key, value)
	r.metrics.RecordReconcileEvent(string(outcome), r.Now().Sub(started))
	return outcome, err
}

func (r *Reconciler) handle(ctx context.Context, key string, value []byte) (Outcome, error) {
	if len(value) == 0 {
		return r.tombstone(ctx, key)
	}

	dec, err := decodePayload(value)
	if err != nil {
		r.logger.ErrorContext(ctx, "dropping malformed upstream payload",
			"key", key,
			"error", err,
		)
		return OutcomeMalformed, nil
	}

	if !r.enabled[dec.tiltakstype] {
		r.logger.DebugContext(ctx, "tiltakstype not enabled, dropping",
			"deltaker_id", dec.deltakerID,
			"tiltakstype", dec.tiltakstype,
		)
		return OutcomeDropped, nil
	}

	existing, err := r.store.Get(ctx, dec.deltakerID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return r.insert(ctx, dec, nil)
	case err != nil:
		return OutcomeUnchanged, fmt.Errorf("look up record %s: %w", dec.deltakerID, err)
	case dec.kilde == id.SourceLegacy:
		// Legacy writes take precedence over whatever the local system
		// did with this key in the meantime.
		return r.insert(ctx, dec, &existing)
	default:
		return r.update(ctx, dec, existing)
	}
}

func (r *Reconciler) tombstone(ctx context.Context, key string) (Outcome, error) {
	deltakerID, err := id.ParseDeltakerID(key)
	if err != nil {
		r.logger.ErrorContext(ctx, "dropping tombstone with malformed key", "key", key, "error", err)
		return OutcomeMalformed, nil
	}
	if err := r.store.Delete(ctx, deltakerID); err != nil {
		return OutcomeUnchanged, fmt.Errorf("delete record %s: %w", deltakerID, err)
	}
	r.logger.InfoContext(ctx, "record deleted by upstream tombstone", "deltaker_id", deltakerID)
	return OutcomeTombstoned, nil
}

// insert builds the record from the payload as the authoritative truth. When
// a local record already exists (legacy precedence) its history survives and
// only the mutable fields are replaced.
func (r *Reconciler) insert(ctx context.Context, dec decoded, existing *participant.Deltaker) (Outcome, error) {
	person, err := r.persons.ResolveOrCreate(ctx, dec.payload.Personident)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("resolve person %s: %w", registry.MaskPersonident(dec.payload.Personident), err)
	}
	program, err := r.programs.Get(ctx, dec.gjennomforingID)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("resolve gjennomforing %s: %w", dec.gjennomforingID, err)
	}

	d := participant.Deltaker{
		ID:              dec.deltakerID,
		PersonID:        person.ID,
		GjennomforingID: program.ID,
		Tiltakstype:     program.Tiltakstype,
		Innsatsgruppe:   person.Innsatsgruppe,
		Opprettet:       dec.payload.RegistrertDato,
		KanEndres:       true,
		Kilde:           dec.kilde,
	}
	if existing != nil {
		d.TidligereStatuser = existing.TidligereStatuser
		d.Historikk = existing.Historikk
		d.Opprettet = existing.Opprettet
		d.Status = existing.Status
	}
	r.applyFields(&d, dec)

	statusChanged := d.Status.ID != dec.status.ID
	if statusChanged {
		d.SetStatus(dec.status, dec.status.GyldigFra)
		d.Historikk = append(d.Historikk, participant.ImportertFraLegacy{
			Importert: dec.status.Opprettet,
		})
	}

	d.SistEndretAv = id.SystemActor
	d.SistEndret = dec.status.Opprettet
	if err := r.store.Upsert(ctx, d); err != nil {
		return OutcomeUnchanged, fmt.Errorf("persist record %s: %w", d.ID, err)
	}

	if !statusChanged && existing != nil {
		return OutcomeUnchanged, nil
	}
	r.logger.InfoContext(ctx, "record inserted from upstream",
		"deltaker_id", d.ID,
		"status", d.Status.Type,
		"kilde", d.Kilde,
	)
	return OutcomeInserted, nil
}

// update maps the payload onto the same field set a user mutation touches
// and persists through the same close-then-append status path, so replaying
// a notification never yields a second status entry.
func (r *Reconciler) update(ctx context.Context, dec decoded, d participant.Deltaker) (Outcome, error) {
	r.applyFields(&d, dec)

	statusChanged := d.Status.ID != dec.status.ID
	if statusChanged {
		d.SetStatus(dec.status, dec.status.GyldigFra)
	}

	d.SistEndretAv = id.SystemActor
	d.SistEndret = dec.status.Opprettet
	if err := r.store.Upsert(ctx, d); err != nil {
		return OutcomeUnchanged, fmt.Errorf("persist record %s: %w", d.ID, err)
	}

	r.refreshPersonIfStale(ctx, dec.payload.Personident)

	if !statusChanged {
		return OutcomeUnchanged, nil
	}
	r.logger.InfoContext(ctx, "record updated from upstream",
		"deltaker_id", d.ID,
		"status", d.Status.Type,
	)
	return OutcomeUpdated, nil
}

func (r *Reconciler) applyFields(d *participant.Deltaker, dec decoded) {
	d.Startdato = dec.startdato()
	d.Sluttdato = dec.sluttdato()
	d.DagerPerUke = dec.payload.DagerPerUke
	d.Deltakelsesprosent = dec.payload.Prosent
	d.Bakgrunnsinformasjon = dec.payload.Bakgrunn
	d.Innhold = dec.innhold()
	d.ErManueltDeltMedArrangor = dec.payload.DeltMedArrangor
}

// refreshPersonIfStale asks the registry to re-derive person attributes when
// the local copy is missing them. Fire-and-forget: a failed refresh request
// only logs, the record write has already happened.
func (r *Reconciler) refreshPersonIfStale(ctx context.Context, personident string) {
	person, err := r.persons.ResolveOrCreate(ctx, personident)
	if err != nil {
		r.logger.WarnContext(ctx, "person lookup for refresh check failed",
			"personident", registry.MaskPersonident(personident),
			"error", err,
		)
		return
	}
	if person.Adresse != nil {
		return
	}
	if err := r.persons.RequestRefresh(ctx, personident); err != nil {
		r.logger.WarnContext(ctx, "person refresh request failed",
			"personident", registry.MaskPersonident(personident),
			"error", err,
		)
	}
}
