package consent

import (
	"context"
	"sort"
	"sync"

	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// InMemoryStore enforces the single-pending invariant with read-then-write
// under the store mutex, the in-memory analogue of the partial unique index
// the postgres store relies on.
type InMemoryStore struct {
	mu        sync.RWMutex
	samtykker map[id.SamtykkeID]Samtykke
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{samtykker: make(map[id.SamtykkeID]Samtykke)}
}

func (s *InMemoryStore) Get(_ context.Context, samtykkeID id.SamtykkeID) (Samtykke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.samtykker[samtykkeID]
	if !ok {
		return Samtykke{}, sentinel.ErrNotFound
	}
	return st, nil
}

func (s *InMemoryStore) FindPending(_ context.Context, deltakerID id.DeltakerID) (Samtykke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.samtykker {
		if st.DeltakerID == deltakerID && st.Pending() {
			return st, nil
		}
	}
	return Samtykke{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByDeltaker(_ context.Context, deltakerID id.DeltakerID) ([]Samtykke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Samtykke
	for _, st := range s.samtykker {
		if st.DeltakerID == deltakerID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opprettet.Before(out[j].Opprettet) })
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, st Samtykke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Pending() {
		for _, existing := range s.samtykker {
			if existing.DeltakerID == st.DeltakerID && existing.Pending() && existing.ID != st.ID {
				return sentinel.ErrConflict
			}
		}
	}
	s.samtykker[st.ID] = st
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, samtykkeID id.SamtykkeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.samtykker, samtykkeID)
	return nil
}
