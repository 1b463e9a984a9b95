package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

// bucket holds everything owned by one tenant behind its own lock, so writes
// to one tenant never block reads of another.
type bucket struct {
	mu      sync.RWMutex
	tenant  *models.Tenant
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
	clients map[id.ClientID]*models.Client
}

// InMemoryStore keeps tenants, users and clients in per-tenant buckets. The
// top-level lock only guards the bucket map and the global indexes.
//
// Error contract: lookups return sentinel.ErrNotFound, including when a record
// exists under a different tenant; inserts return sentinel.ErrConflict on
// duplicate keys.
type InMemoryStore struct {
	mu          sync.RWMutex
	buckets     map[id.TenantID]*bucket
	slugs       map[string]id.TenantID
	oauthClient map[string]clientRef
}

type clientRef struct {
	tenantID id.TenantID
	clientID id.ClientID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		buckets:     make(map[id.TenantID]*bucket),
		slugs:       make(map[string]id.TenantID),
		oauthClient: make(map[string]clientRef),
	}
}

func (s *InMemoryStore) bucket(tenantID id.TenantID) (*bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return b, nil
}

func (s *InMemoryStore) CreateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.buckets[t.ID]; exists {
		return fmt.Errorf("tenant %s: %w", t.ID, sentinel.ErrConflict)
	}
	if _, exists := s.slugs[t.Slug]; exists {
		return fmt.Errorf("tenant slug %q: %w", t.Slug, sentinel.ErrConflict)
	}
	s.buckets[t.ID] = &bucket{
		tenant:  cloneTenant(t),
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
		clients: make(map[id.ClientID]*models.Client),
	}
	s.slugs[t.Slug] = t.ID
	return nil
}

func (s *InMemoryStore) FindTenant(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneTenant(b.tenant), nil
}

func (s *InMemoryStore) FindTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	tenantID, ok := s.slugs[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindTenant(ctx, tenantID)
}

func (s *InMemoryStore) ListTenants(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	buckets := make([]*bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		buckets = append(buckets, b)
	}
	s.mu.RUnlock()

	out := make([]*models.Tenant, 0, len(buckets))
	for _, b := range buckets {
		b.mu.RLock()
		out = append(out, cloneTenant(b.tenant))
		b.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b *models.Tenant) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// UpdateTenant applies mutate under the tenant's write lock. The stored record
// is only replaced when mutate succeeds.
func (s *InMemoryStore) UpdateTenant(_ context.Context, tenantID id.TenantID, mutate func(*models.Tenant) error) (*models.Tenant, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	working := cloneTenant(b.tenant)
	if err := mutate(working); err != nil {
		return nil, err
	}
	b.tenant = working
	return cloneTenant(working), nil
}

func (s *InMemoryStore) CreateUser(_ context.Context, u *models.User) error {
	b, err := s.bucket(u.TenantID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[u.ID]; exists {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrConflict)
	}
	if _, exists := b.byEmail[u.Email]; exists {
		return fmt.Errorf("user email: %w", sentinel.ErrConflict)
	}
	cp := *u
	b.users[u.ID] = &cp
	b.byEmail[u.Email] = u.ID
	return nil
}

func (s *InMemoryStore) FindUser(_ context.Context, tenantID id.TenantID, userID id.UserID) (*models.User, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) FindUserByEmail(_ context.Context, tenantID id.TenantID, email string) (*models.User, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	userID, ok := b.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *b.users[userID]
	return &cp, nil
}

func (s *InMemoryStore) CreateClient(_ context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[c.TenantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := s.oauthClient[c.OAuthClientID]; exists {
		return fmt.Errorf("oauth client id: %w", sentinel.ErrConflict)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.clients[c.ID]; exists {
		return fmt.Errorf("client %s: %w", c.ID, sentinel.ErrConflict)
	}
	b.clients[c.ID] = cloneClient(c)
	s.oauthClient[c.OAuthClientID] = clientRef{tenantID: c.TenantID, clientID: c.ID}
	return nil
}

func (s *InMemoryStore) FindClient(_ context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.clients[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneClient(c), nil
}

// FindClientByOAuthID is the one lookup not scoped by tenant: the token
// endpoint learns the tenant from the client id itself.
func (s *InMemoryStore) FindClientByOAuthID(ctx context.Context, oauthClientID string) (*models.Client, error) {
	s.mu.RLock()
	ref, ok := s.oauthClient[oauthClientID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindClient(ctx, ref.tenantID, ref.clientID)
}

func (s *InMemoryStore) ListClients(_ context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*models.Client, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, cloneClient(c))
	}
	slices.SortFunc(out, func(a, b *models.Client) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateClient(_ context.Context, tenantID id.TenantID, clientID id.ClientID, mutate func(*models.Client) error) (*models.Client, error) {
	b, err := s.bucket(tenantID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clients[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneClient(c)
	if err := mutate(working); err != nil {
		return nil, err
	}
	b.clients[clientID] = working
	return cloneClient(working), nil
}

func cloneTenant(t *models.Tenant) *models.Tenant {
	cp := *t
	cp.DisabledTools = slices.Clone(t.DisabledTools)
	if t.SuspendedAt != nil {
		at := *t.SuspendedAt
		cp.SuspendedAt = &at
	}
	return &cp
}

func cloneClient(c *models.Client) *models.Client {
	cp := *c
	cp.RedirectURIs = slices.Clone(c.RedirectURIs)
	cp.AllowedGrants = slices.Clone(c.AllowedGrants)
	cp.AllowedScopes = slices.Clone(c.AllowedScopes)
	return &cp
}
