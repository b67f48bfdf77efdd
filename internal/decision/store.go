package decision

import (
	"context"

	id "deltaker/pkg/domain"
)

// Store persists vedtak. Implementations enforce the single-undecided
// invariant at write time: Upsert returns sentinel.ErrConflict when it would
// leave two undecided vedtak on the same record. FindUndecided returns
// sentinel.ErrNotFound when none exists.
type Store interface {
	Get(ctx context.Context, vedtakID id.VedtakID) (Vedtak, error)
	FindUndecided(ctx context.Context, deltakerID id.DeltakerID) (Vedtak, error)
	ListDecided(ctx context.Context, deltakerID id.DeltakerID) ([]Vedtak, error)
	Upsert(ctx context.Context, v Vedtak) error
	Delete(ctx context.Context, vedtakID id.VedtakID) error
}
