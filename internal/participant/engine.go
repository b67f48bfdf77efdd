package participant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deltaker/internal/platform/metrics"
	"deltaker/internal/status"
	id "deltaker/pkg/domain"
)

// Publisher ships the record downstream after a successful mutation. The
// call is fire-and-forget from the engine's point of view: a publish failure
// is logged, never rolled into the mutation result.
type Publisher interface {
	Publish(ctx context.Context, d Deltaker) error
}

// Engine applies validated mutations to participant records. It is the only
// component that closes and opens statuses, so the "exactly one current
// status" invariant lives here and in the stores' atomic Upsert.
type Engine struct {
	store     Store
	rules     *Ruleset
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// Now is swappable for tests.
	Now func() time.Time
}

func NewEngine(store Store, publisher Publisher, logger *slog.Logger, m *metrics.Metrics) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		rules:     NewRuleset(),
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		Now:       time.Now,
	}, nil
}

// Apply runs one mutation end to end: validate, derive the status
// transition, apply the field delta, stamp the actor, append exactly one
// history entry, persist atomically, and publish unless the record is still
// a draft. Draft-phase edits keep the history empty: the timeline starts
// when the record leaves the draft, which is also what keeps drafts
// deletable.
//
// A record without an id takes the draft-allocation path: the id is
// allocated here and the must-differ checks are skipped.
//
// Errors: *Rejection for expected business refusals (discriminate with
// AsRejection); anything else is an infrastructure failure from the store or
// publisher collaborators.
func (e *Engine) Apply(ctx context.Context, d Deltaker, m Mutation, av id.Actor) (Deltaker, error) {
	isNew := d.ID.IsNil()

	if rej := e.rules.Validate(d, m, isNew); rej != nil {
		e.metrics.RecordMutationRejected(string(rej.Code))
		return Deltaker{}, rej
	}

	now := e.Now()
	if isNew {
		d.ID = id.NewDeltakerID()
		d.Opprettet = now
		d.KanEndres = true
		if d.Kilde == "" {
			d.Kilde = id.SourceLokal
		}
		if d.Status.ID.IsNil() {
			d.Status = status.New(status.TypeKladd, nil, now)
		}
	}

	if next, changed := e.transitionFor(d, m, now); changed {
		d.SetStatus(next, now)
	}

	applyDelta(&d, m)
	d.SistEndret = now
	d.SistEndretAv = av
	if !d.IsDraft() {
		d.Historikk = append(d.Historikk, Endring{
			ID:      id.NewEndringID(),
			Kind:    m.Kind(),
			Payload: m,
			Endret:  now,
			Av:      av,
		})
	}

	if err := e.store.Upsert(ctx, d); err != nil {
		return Deltaker{}, fmt.Errorf("persist record %s: %w", d.ID, err)
	}
	e.metrics.RecordMutationApplied(string(m.Kind()))
	e.publish(ctx, d)
	return d, nil
}

// DeleteDraft removes a record that never left the draft phase. Records with
// any change history or a decision are never physically deleted.
func (e *Engine) DeleteDraft(ctx context.Context, d Deltaker) error {
	if !d.IsDraft() {
		return reject(RejectWrongStatus, "only drafts can be deleted, status is %s", d.Status.Type)
	}
	for _, entry := range d.Historikk {
		switch entry.(type) {
		case VedtakFattet, Endring:
			return reject(RejectWrongStatus, "draft %s has history and cannot be deleted", d.ID)
		}
	}
	if err := e.store.Delete(ctx, d.ID); err != nil {
		return fmt.Errorf("delete draft %s: %w", d.ID, err)
	}
	return nil
}

// SetDeltMedArrangor toggles the shared-with-arranger flag. This is a
// privileged coordinator action: it leaves Status untouched and records a
// coordinator-action history marker instead of a change delta.
func (e *Engine) SetDeltMedArrangor(ctx context.Context, d Deltaker, shared bool, av id.Actor) (Deltaker, error) {
	if d.ErManueltDeltMedArrangor == shared {
		return Deltaker{}, reject(RejectNoChange, "shared-with-arranger flag already %t", shared)
	}
	now := e.Now()
	d.ErManueltDeltMedArrangor = shared
	d.SistEndret = now
	d.SistEndretAv = av
	handling := "DEL_MED_ARRANGOR"
	if !shared {
		handling = "FJERN_DELING_MED_ARRANGOR"
	}
	d.Historikk = append(d.Historikk, KoordinatorHandling{
		Handling: handling,
		Utfort:   now,
		Av:       av,
	})
	if err := e.store.Upsert(ctx, d); err != nil {
		return Deltaker{}, fmt.Errorf("persist record %s: %w", d.ID, err)
	}
	e.publish(ctx, d)
	return d, nil
}

// transitionFor derives whether the mutation moves the record to a new
// status. Returns the fresh status and true when it does.
func (e *Engine) transitionFor(d Deltaker, m Mutation, now time.Time) (status.Status, bool) {
	switch mut := m.(type) {
	case AvsluttDeltakelse:
		aarsak := mut.Aarsak
		return status.New(status.TypeHarSluttet, &aarsak, now), true
	case IkkeAktuell:
		aarsak := mut.Aarsak
		return status.New(status.TypeIkkeAktuell, &aarsak, now), true
	case ForlengDeltakelse:
		// Extending an already-ended record past today reopens it.
		if d.Status.Type == status.TypeHarSluttet && mut.Sluttdato.After(now) {
			return status.New(status.TypeDeltar, nil, now), true
		}
		return status.Status{}, false
	case ReaktiverDeltakelse:
		return status.New(status.TypeVenterPaOppstart, nil, now), true
	case EndreSluttaarsak:
		// Same status type, corrected reason: still a supersede so the
		// old reason stays in the closed chain.
		aarsak := mut.Aarsak
		return status.New(d.Status.Type, &aarsak, now), true
	default:
		return status.Status{}, false
	}
}

// applyDelta writes the mutation's fields onto the record. Status changes are
// handled separately by transitionFor.
func applyDelta(d *Deltaker, m Mutation) {
	switch mut := m.(type) {
	case EndreBakgrunnsinformasjon:
		d.Bakgrunnsinformasjon = mut.Bakgrunnsinformasjon
	case EndreInnhold:
		d.Innhold = mut.Innhold
	case EndreDeltakelsesmengde:
		d.Deltakelsesprosent = mut.Deltakelsesprosent
		d.DagerPerUke = mut.DagerPerUke
	case EndreStartdato:
		start := mut.Startdato
		d.Startdato = &start
		if mut.Sluttdato != nil {
			slutt := *mut.Sluttdato
			d.Sluttdato = &slutt
		}
	case FjernOppstartsdato:
		d.Startdato = nil
	case AvsluttDeltakelse:
		slutt := mut.Sluttdato
		d.Sluttdato = &slutt
	case ForlengDeltakelse:
		slutt := mut.Sluttdato
		d.Sluttdato = &slutt
	case EndreSluttdato:
		slutt := mut.Sluttdato
		d.Sluttdato = &slutt
	case EndreSluttaarsak:
		// status-only mutation
	case IkkeAktuell:
		// status-only mutation
	case ReaktiverDeltakelse:
		d.Sluttdato = nil
	}
}

func (e *Engine) publish(ctx context.Context, d Deltaker) {
	if e.publisher == nil || d.Status.Type == status.TypeKladd {
		// Drafts are never published upstream.
		return
	}
	if err := e.publisher.Publish(ctx, d); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish record downstream",
			"deltaker_id", d.ID.String(),
			"error", err.Error(),
		)
	}
}
