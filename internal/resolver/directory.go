package resolver

import (
	"context"
	"sync"
	"time"

	id "deltaker/pkg/domain"
)

// MockDirectoryClient serves names from seeded maps with a configurable
// latency to mimic real-world directory calls.
type MockDirectoryClient struct {
	Latency time.Duration

	mu         sync.Mutex
	identNavn  map[id.NavIdent]string
	enhetNavn  map[id.Enhetsnummer]string
	identCalls int
	enhetCalls int
}

func (c *MockDirectoryClient) SeedIdent(ident id.NavIdent, navn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identNavn == nil {
		c.identNavn = make(map[id.NavIdent]string)
	}
	c.identNavn[ident] = navn
}

func (c *MockDirectoryClient) SeedEnhet(enhet id.Enhetsnummer, navn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enhetNavn == nil {
		c.enhetNavn = make(map[id.Enhetsnummer]string)
	}
	c.enhetNavn[enhet] = navn
}

func (c *MockDirectoryClient) HentNavn(_ context.Context, identer []id.NavIdent) (map[id.NavIdent]string, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identCalls++
	out := make(map[id.NavIdent]string)
	for _, ident := range identer {
		if navn, ok := c.identNavn[ident]; ok {
			out[ident] = navn
		}
	}
	return out, nil
}

func (c *MockDirectoryClient) HentEnhetsnavn(_ context.Context, enheter []id.Enhetsnummer) (map[id.Enhetsnummer]string, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhetCalls++
	out := make(map[id.Enhetsnummer]string)
	for _, enhet := range enheter {
		if navn, ok := c.enhetNavn[enhet]; ok {
			out[enhet] = navn
		}
	}
	return out, nil
}

// Calls returns how many directory round-trips were made. Test hook.
func (c *MockDirectoryClient) Calls() (identCalls, enhetCalls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identCalls, c.enhetCalls
}
