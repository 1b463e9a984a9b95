package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"fitgate/internal/fitness/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

type ownerKey struct {
	tenantID id.TenantID
	userID   id.UserID
}

// InMemoryStore keeps fitness records per (tenant, user). Every read is keyed
// by tenant; a record under another tenant is reported as sentinel.ErrNotFound.
type InMemoryStore struct {
	mu          sync.RWMutex
	athletes    map[ownerKey]*models.Athlete
	activities  map[ownerKey][]*models.Activity
	connections map[ownerKey]map[string]*models.Connection
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		athletes:    make(map[ownerKey]*models.Athlete),
		activities:  make(map[ownerKey][]*models.Activity),
		connections: make(map[ownerKey]map[string]*models.Connection),
	}
}

func (s *InMemoryStore) SaveAthlete(_ context.Context, a *models.Athlete) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *a
	s.athletes[ownerKey{a.TenantID, a.UserID}] = &out
	return nil
}

func (s *InMemoryStore) GetAthlete(_ context.Context, tenantID id.TenantID, userID id.UserID) (*models.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.athletes[ownerKey{tenantID, userID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *a
	return &out, nil
}

// SaveActivity inserts or replaces an activity. Activities are kept newest
// first.
func (s *InMemoryStore) SaveActivity(_ context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey{a.TenantID, a.UserID}
	list := slices.DeleteFunc(s.activities[key], func(x *models.Activity) bool { return x.ID == a.ID })
	out := *a
	list = append(list, &out)
	slices.SortStableFunc(list, func(x, y *models.Activity) int { return y.StartDate.Compare(x.StartDate) })
	s.activities[key] = list
	return nil
}

func (s *InMemoryStore) GetActivity(_ context.Context, tenantID id.TenantID, userID id.UserID, activityID id.ActivityID) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.activities[ownerKey{tenantID, userID}] {
		if a.ID == activityID {
			out := *a
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListActivities(_ context.Context, tenantID id.TenantID, userID id.UserID, f models.ActivityFilter) ([]*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Activity
	for _, a := range s.activities[ownerKey{tenantID, userID}] {
		if f.Provider != "" && a.Provider != f.Provider {
			continue
		}
		if !f.Before.IsZero() && !a.StartDate.Before(f.Before) {
			continue
		}
		if !f.Since.IsZero() && a.StartDate.Before(f.Since) {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveConnection(_ context.Context, c *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey{c.TenantID, c.UserID}
	if s.connections[key] == nil {
		s.connections[key] = make(map[string]*models.Connection)
	}
	out := *c
	s.connections[key][c.Provider] = &out
	return nil
}

// ListConnections returns connections sorted by provider.
func (s *InMemoryStore) ListConnections(_ context.Context, tenantID id.TenantID, userID id.UserID) ([]*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byProvider := s.connections[ownerKey{tenantID, userID}]
	out := make([]*models.Connection, 0, len(byProvider))
	for _, c := range byProvider {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Connection) int { return strings.Compare(a.Provider, b.Provider) })
	return out, nil
}
