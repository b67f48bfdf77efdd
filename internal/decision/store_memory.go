package decision

import (
	"context"
	"sort"
	"sync"

	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	vedtak map[id.VedtakID]Vedtak
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{vedtak: make(map[id.VedtakID]Vedtak)}
}

func (s *InMemoryStore) Get(_ context.Context, vedtakID id.VedtakID) (Vedtak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vedtak[vedtakID]
	if !ok {
		return Vedtak{}, sentinel.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) FindUndecided(_ context.Context, deltakerID id.DeltakerID) (Vedtak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vedtak {
		if v.DeltakerID == deltakerID && !v.Decided() {
			return v, nil
		}
	}
	return Vedtak{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListDecided(_ context.Context, deltakerID id.DeltakerID) ([]Vedtak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Vedtak
	for _, v := range s.vedtak {
		if v.DeltakerID == deltakerID && v.Decided() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fattet.Before(*out[j].Fattet) })
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, v Vedtak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !v.Decided() {
		for _, existing := range s.vedtak {
			if existing.DeltakerID == v.DeltakerID && !existing.Decided() && existing.ID != v.ID {
				return sentinel.ErrConflict
			}
		}
	}
	s.vedtak[v.ID] = v
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, vedtakID id.VedtakID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vedtak, vedtakID)
	return nil
}
