package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deltaker/internal/participant"
	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// Service creates and rules on vedtak. Ruling appends the decision marker to
// the record's history; undecided vedtak stay invisible to the timeline.
type Service struct {
	store   Store
	records participant.Store
	logger  *slog.Logger

	Now func() time.Time
}

func NewService(store Store, records participant.Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vedtak store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, records: records, logger: logger, Now: time.Now}, nil
}

// OpenOrUpdateDraft opens an undecided vedtak over the record's current
// terms, or refreshes the existing undecided one in place (same id, fresh
// snapshot).
func (s *Service) OpenOrUpdateDraft(ctx context.Context, d participant.Deltaker, av id.Actor) (Vedtak, error) {
	now := s.Now()

	existing, err := s.store.FindUndecided(ctx, d.ID)
	switch {
	case err == nil:
		existing.DeltakerVedVedtak = d
		existing.SistEndret = now
		existing.SistEndretAv = av
		if err := s.store.Upsert(ctx, existing); err != nil {
			return Vedtak{}, fmt.Errorf("update undecided vedtak %s: %w", existing.ID, err)
		}
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
		fresh := Vedtak{
			ID:                id.NewVedtakID(),
			DeltakerID:        d.ID,
			DeltakerVedVedtak: d,
			Opprettet:         now,
			OpprettetAv:       av,
			SistEndret:        now,
			SistEndretAv:      av,
		}
		if err := s.store.Upsert(ctx, fresh); err != nil {
			return Vedtak{}, fmt.Errorf("create vedtak for record %s: %w", d.ID, err)
		}
		return fresh, nil
	default:
		return Vedtak{}, fmt.Errorf("find undecided vedtak for record %s: %w", d.ID, err)
	}
}

// WithdrawDraft removes the undecided vedtak while the record is still in
// the draft or proposal phase, so deleting a draft leaves no orphan behind.
// Returns false when there is nothing to withdraw or the record is past that
// point — an expected outcome the caller branches on, not an error.
func (s *Service) WithdrawDraft(ctx context.Context, d participant.Deltaker) (bool, error) {
	if d.Status.Type != status.TypeKladd && d.Status.Type != status.TypeUtkast {
		return false, nil
	}
	pending, err := s.store.FindUndecided(ctx, d.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find undecided vedtak for record %s: %w", d.ID, err)
	}
	if err := s.store.Delete(ctx, pending.ID); err != nil {
		return false, fmt.Errorf("delete vedtak %s: %w", pending.ID, err)
	}
	return true, nil
}

// Fatt rules on the record's undecided vedtak, binding the snapshot terms,
// and appends the decision marker to the record history in the same store
// round-trip the marker belongs to.
//
// Errors: sentinel.ErrNotFound when the record has no undecided vedtak.
func (s *Service) Fatt(ctx context.Context, d participant.Deltaker, av id.Actor, paVegneAv bool) (Vedtak, error) {
	pending, err := s.store.FindUndecided(ctx, d.ID)
	if err != nil {
		return Vedtak{}, fmt.Errorf("find undecided vedtak for record %s: %w", d.ID, err)
	}

	now := s.Now()
	pending.Fattet = &now
	pending.FattetAvNav = paVegneAv
	pending.DeltakerVedVedtak = d
	pending.SistEndret = now
	pending.SistEndretAv = av
	if err := s.store.Upsert(ctx, pending); err != nil {
		return Vedtak{}, fmt.Errorf("persist vedtak %s: %w", pending.ID, err)
	}

	d.Historikk = append(d.Historikk, participant.VedtakFattet{
		VedtakID:    pending.ID,
		Fattet:      now,
		Av:          av,
		FattetAvNav: paVegneAv,
	})
	d.SistEndret = now
	d.SistEndretAv = av
	if err := s.records.Upsert(ctx, d); err != nil {
		return Vedtak{}, fmt.Errorf("persist decision marker on record %s: %w", d.ID, err)
	}
	return pending, nil
}
