package consent

import (
	"context"

	id "deltaker/pkg/domain"
)

// Store persists samtykke instances.
//
// Implementations must uphold the single-pending invariant at write time:
// Upsert returns sentinel.ErrConflict when it would leave two pending
// instances on the same record. FindPending returns sentinel.ErrNotFound
// when no pending instance exists — by the invariant the lookup is always
// unambiguous.
type Store interface {
	Get(ctx context.Context, samtykkeID id.SamtykkeID) (Samtykke, error)
	FindPending(ctx context.Context, deltakerID id.DeltakerID) (Samtykke, error)
	ListByDeltaker(ctx context.Context, deltakerID id.DeltakerID) ([]Samtykke, error)
	Upsert(ctx context.Context, s Samtykke) error
	Delete(ctx context.Context, samtykkeID id.SamtykkeID) error
}
