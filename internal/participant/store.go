package participant

import (
	"context"

	id "deltaker/pkg/domain"
)

// Store is the durable home of participant records. Implementations must
// persist the record, its status chain, and its history entries as one
// atomic unit per Upsert call: a status change without the matching history
// entry is data corruption, not a partial outcome.
//
// Get returns sentinel.ErrNotFound (possibly wrapped) for unknown ids.
// Delete of a non-existent id succeeds; the reconciler relies on tombstone
// idempotency.
type Store interface {
	Get(ctx context.Context, deltakerID id.DeltakerID) (Deltaker, error)
	ListByPerson(ctx context.Context, personID id.PersonID) ([]Deltaker, error)
	Upsert(ctx context.Context, d Deltaker) error
	Delete(ctx context.Context, deltakerID id.DeltakerID) error
}
