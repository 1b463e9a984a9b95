package provider

import (
	"context"
	"sync"
	"time"

	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

// Pending is a connect flow waiting for the provider redirect. The PKCE
// verifier stays on the server.
type Pending struct {
	State       string
	Verifier    string
	TenantID    id.TenantID
	UserID      id.UserID
	Provider    string
	RedirectURI string
	ExpiresAt   time.Time
}

// InMemoryPendingStore keeps pending connects by state. Each state can be
// consumed once.
type InMemoryPendingStore struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

func NewInMemoryPendingStore() *InMemoryPendingStore {
	return &InMemoryPendingStore{pending: make(map[string]*Pending)}
}

func (s *InMemoryPendingStore) Save(_ context.Context, p *Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pending[p.State] = &cp
	return nil
}

// Consume removes and returns the pending connect for state. Expired
// entries are reported as not found.
func (s *InMemoryPendingStore) Consume(_ context.Context, state string, now time.Time) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.pending, state)
	if !now.Before(p.ExpiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryPendingStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for state, p := range s.pending {
		if !now.Before(p.ExpiresAt) {
			delete(s.pending, state)
			n++
		}
	}
	return n, nil
}
