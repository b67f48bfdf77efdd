package participant

import (
	"context"
	"sync"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// InMemoryStore keeps whole aggregates under one mutex, which gives the
// record+status+history atomicity for free. Reads return copies so callers
// cannot mutate stored state behind the lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.DeltakerID]Deltaker
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.DeltakerID]Deltaker)}
}

func (s *InMemoryStore) Get(_ context.Context, deltakerID id.DeltakerID) (Deltaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.records[deltakerID]
	if !ok {
		return Deltaker{}, sentinel.ErrNotFound
	}
	return copyRecord(d), nil
}

func (s *InMemoryStore) ListByPerson(_ context.Context, personID id.PersonID) ([]Deltaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Deltaker
	for _, d := range s.records {
		if d.PersonID == personID {
			out = append(out, copyRecord(d))
		}
	}
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, d Deltaker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[d.ID] = copyRecord(d)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, deltakerID id.DeltakerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, deltakerID)
	return nil
}

func copyRecord(d Deltaker) Deltaker {
	out := d
	if d.TidligereStatuser != nil {
		out.TidligereStatuser = append([]status.Status(nil), d.TidligereStatuser...)
	}
	if d.Historikk != nil {
		out.Historikk = append([]HistorikkEntry(nil), d.Historikk...)
	}
	if d.Innhold.Elementer != nil {
		out.Innhold.Elementer = append([]Innholdselement(nil), d.Innhold.Elementer...)
	}
	return out
}
