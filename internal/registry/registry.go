// Package registry holds the clients for the external person and program
// registries. Mock implementations use deterministic data and a configurable
// latency to mimic real-world calls.
package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// Person is the local copy of a person reference. Adresse is a derived
// attribute the upstream registry fills in asynchronously; a nil value means
// the enrichment has not arrived yet. Innsatsgruppe is the needs assessment
// the duration rules key on.
type Person struct {
	ID            id.PersonID
	Personident   string
	Fornavn       string
	Etternavn     string
	Innsatsgruppe id.Innsatsgruppe
	Adresse       *string
}

// Gjennomforing is a program run a person can be enrolled in.
type Gjennomforing struct {
	ID          id.GjennomforingID
	Navn        string
	Tiltakstype id.Tiltakstype
	Startdato   time.Time
	Sluttdato   *time.Time
}

// PersonClient resolves person identities against the person registry.
// ResolveOrCreate never returns NotFound: an unknown identity is registered
// on the fly. RequestRefresh asks the registry to re-derive attributes
// (address and the like) out of band; it does not block on the result.
type PersonClient interface {
	ResolveOrCreate(ctx context.Context, personident string) (Person, error)
	RequestRefresh(ctx context.Context, personident string) error
}

// GjennomforingClient looks up program runs.
// Errors: sentinel.ErrNotFound when the id is unknown.
type GjennomforingClient interface {
	Get(ctx context.Context, gjennomforingID id.GjennomforingID) (Gjennomforing, error)
}

// MockPersonClient registers identities in memory and hands out stable ids
// across repeated calls for the same identity.
type MockPersonClient struct {
	Latency time.Duration
	// WithAdresse controls whether resolved persons come back enriched.
	WithAdresse bool

	mu        sync.Mutex
	persons   map[string]Person
	refreshed []string
}

func (c *MockPersonClient) ResolveOrCreate(_ context.Context, personident string) (Person, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.persons == nil {
		c.persons = make(map[string]Person)
	}
	if p, ok := c.persons[personident]; ok {
		return p, nil
	}
	p := Person{
		ID:            id.NewPersonID(),
		Personident:   personident,
		Fornavn:       "Test",
		Etternavn:     "Testersen",
		Innsatsgruppe: id.InnsatsSituasjonsbestemt,
	}
	if c.WithAdresse {
		adresse := "Storgata 1, 0155 Oslo"
		p.Adresse = &adresse
	}
	c.persons[personident] = p
	return p, nil
}

func (c *MockPersonClient) RequestRefresh(_ context.Context, personident string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = append(c.refreshed, personident)
	return nil
}

// RefreshRequests returns the identities a refresh was requested for, in
// call order. Test hook.
func (c *MockPersonClient) RefreshRequests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.refreshed...)
}

// MockGjennomforingClient serves program runs from a seeded map.
type MockGjennomforingClient struct {
	Latency time.Duration

	mu      sync.Mutex
	entries map[id.GjennomforingID]Gjennomforing
}

func (c *MockGjennomforingClient) Seed(g Gjennomforing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[id.GjennomforingID]Gjennomforing)
	}
	c.entries[g.ID] = g
}

func (c *MockGjennomforingClient) Get(_ context.Context, gjennomforingID id.GjennomforingID) (Gjennomforing, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.entries[gjennomforingID]
	if !ok {
		return Gjennomforing{}, sentinel.ErrNotFound
	}
	return g, nil
}

// MaskPersonident hides all but the birth-date digits for log output.
func MaskPersonident(personident string) string {
	if len(personident) <= 6 {
		return personident
	}
	return personident[:6] + strings.Repeat("*", len(personident)-6)
}
