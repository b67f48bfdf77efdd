package participant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	newRecord := func(personID id.PersonID) Deltaker {
		return Deltaker{
			ID:       id.NewDeltakerID(),
			PersonID: personID,
			Status:   status.New(status.TypeDeltar, nil, now),
		}
	}

	t.Run("get returns ErrNotFound for unknown id", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.Get(ctx, id.NewDeltakerID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("upsert then get round-trips", func(t *testing.T) {
		store := NewInMemoryStore()
		d := newRecord(id.NewPersonID())
		require.NoError(t, store.Upsert(ctx, d))

		got, err := store.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, status.TypeDeltar, got.Status.Type)
	})

	t.Run("list by person filters on the business key", func(t *testing.T) {
		store := NewInMemoryStore()
		person := id.NewPersonID()
		require.NoError(t, store.Upsert(ctx, newRecord(person)))
		require.NoError(t, store.Upsert(ctx, newRecord(person)))
		require.NoError(t, store.Upsert(ctx, newRecord(id.NewPersonID())))

		records, err := store.ListByPerson(ctx, person)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := NewInMemoryStore()
		d := newRecord(id.NewPersonID())
		require.NoError(t, store.Upsert(ctx, d))
		require.NoError(t, store.Delete(ctx, d.ID))
		require.NoError(t, store.Delete(ctx, d.ID), "deleting a missing record must succeed")
		_, err := store.Get(ctx, d.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("stored state is isolated from caller mutations", func(t *testing.T) {
		store := NewInMemoryStore()
		d := newRecord(id.NewPersonID())
		d.Historikk = []HistorikkEntry{Endring{ID: id.NewEndringID(), Kind: KindEndreInnhold, Endret: now}}
		require.NoError(t, store.Upsert(ctx, d))

		got, err := store.Get(ctx, d.ID)
		require.NoError(t, err)
		got.Historikk = append(got.Historikk, Endring{ID: id.NewEndringID(), Kind: KindEndreInnhold, Endret: now})

		again, err := store.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Len(t, again.Historikk, 1)
	})
}
