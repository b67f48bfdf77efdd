package consent

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

// DefaultPendingTTL is how long a pending samtykke stays answerable before
// it expires.
const DefaultPendingTTL = 30 * 24 * time.Hour

// Service runs the consent workflow on top of the participant store. It
// never changes a record's status; granting only stamps the samtykke and
// appends the consent marker to the record's history.
type Service struct {
	store      Store
	records    participant.Store
	logger     *slog.Logger
	pendingTTL time.Duration

	Now func() time.Time
}

func NewService(store Store, records participant.Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("samtykke store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		records:    records,
		logger:     logger,
		pendingTTL: DefaultPendingTTL,
		Now:        time.Now,
	}, nil
}

// SetPendingTTL overrides how long a fresh draft stays answerable.
func (s *Service) SetPendingTTL(d time.Duration) {
	if d > 0 {
		s.pendingTTL = d
	}
}

// OpenOrUpdateDraft opens a pending samtykke for the record, or refreshes
// the existing pending one in place (same id, fresh snapshot and expiry).
// The snapshot is always re-taken as of this call, so repeated calls leave
// exactly one pending instance reflecting the latest proposed state.
func (s *Service) OpenOrUpdateDraft(ctx context.Context, d participant.Deltaker) (Samtykke, error) {
	now := s.Now()

	existing, err := s.store.FindPending(ctx, d.ID)
	switch {
	case err == nil:
		existing.Deltaker = d
		existing.GyldigTil = now.Add(s.pendingTTL)
		existing.SistEndret = now
		if err := s.store.Upsert(ctx, existing); err != nil {
			return Samtykke{}, fmt.Errorf("update pending samtykke %s: %w", existing.ID, err)
		}
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
		fresh := Samtykke{
			ID:         id.NewSamtykkeID(),
			DeltakerID: d.ID,
			GyldigTil:  now.Add(s.pendingTTL),
			Deltaker:   d,
			Opprettet:  now,
			SistEndret: now,
		}
		if err := s.store.Upsert(ctx, fresh); err != nil {
			return Samtykke{}, fmt.Errorf("create samtykke for record %s: %w", d.ID, err)
		}
		return fresh, nil
	default:
		return Samtykke{}, fmt.Errorf("find pending samtykke for record %s: %w", d.ID, err)
	}
}

// GrantOnBehalf grants the (possibly freshly created) pending samtykke
// without a formal decision. The case worker must supply an explicit
// justification; the absence of one is an expected rejection, not an
// infrastructure failure.
func (s *Service) GrantOnBehalf(ctx context.Context, d participant.Deltaker, begrunnelse string, av id.Actor) (Samtykke, error) {
	if begrunnelse == "" {
		return Samtykke{}, &participant.Rejection{
			Code:    participant.RejectMissingJustification,
			Message: "granting consent on the person's behalf requires a justification",
		}
	}

	pending, err := s.OpenOrUpdateDraft(ctx, d)
	if err != nil {
		return Samtykke{}, err
	}

	now := s.Now()
	pending.Gitt = &now
	pending.GodkjentAvNav = &GodkjenningAvNav{Begrunnelse: begrunnelse, Av: av}
	pending.SistEndret = now
	if err := s.store.Upsert(ctx, pending); err != nil {
		return Samtykke{}, fmt.Errorf("grant samtykke %s: %w", pending.ID, err)
	}

	d.Historikk = append(d.Historikk, participant.SamtykkeGitt{
		SamtykkeID: pending.ID,
		Gitt:       now,
		PaVegneAv:  true,
		Av:         av,
	})
	d.SistEndret = now
	d.SistEndretAv = av
	if err := s.records.Upsert(ctx, d); err != nil {
		return Samtykke{}, fmt.Errorf("persist consent marker on record %s: %w", d.ID, err)
	}
	return pending, nil
}

// WithdrawDraft removes the pending samtykke while the record is still in
// the draft or proposal phase. Returns false when there is nothing to
// withdraw or the record is past that point — an expected outcome the
// caller branches on, not an error.
func (s *Service) WithdrawDraft(ctx context.Context, d participant.Deltaker) (bool, error) {
	if d.Status.Type != status.TypeKladd && d.Status.Type != status.TypeUtkast {
		return false, nil
	}
	pending, err := s.store.FindPending(ctx, d.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find pending samtykke for record %s: %w", d.ID, err)
	}
	if err := s.store.Delete(ctx, pending.ID); err != nil {
		return false, fmt.Errorf("delete samtykke %s: %w", pending.ID, err)
	}
	return true, nil
}
