package oauthapp

import (
	"context"
	"slices"
	"strings"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
	psync "fitgate/pkg/platform/sync"
)

// InMemoryStore holds at most one OAuthApp per (tenant, provider), sharded by
// that pair.
type InMemoryStore struct {
	apps *psync.ShardedMap[*models.OAuthApp]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: psync.NewShardedMap[*models.OAuthApp](0)}
}

func appKey(tenantID id.TenantID, provider string) string {
	return psync.Key(tenantID.String(), strings.ToLower(provider))
}

// Save inserts or replaces the tenant's app for the provider.
func (s *InMemoryStore) Save(_ context.Context, app *models.OAuthApp) error {
	if err := app.Validate(); err != nil {
		return err
	}
	key := appKey(app.TenantID, app.Provider)
	return s.apps.With(key, func(m map[string]*models.OAuthApp) error {
		m[key] = clone(app)
		return nil
	})
}

func (s *InMemoryStore) FindByProvider(_ context.Context, tenantID id.TenantID, provider string) (*models.OAuthApp, error) {
	app, ok := s.apps.Get(appKey(tenantID, provider))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(app), nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.OAuthApp, error) {
	var out []*models.OAuthApp
	s.apps.Range(func(_ string, app *models.OAuthApp) bool {
		if app.TenantID == tenantID {
			out = append(out, clone(app))
		}
		return true
	})
	slices.SortFunc(out, func(a, b *models.OAuthApp) int { return strings.Compare(a.Provider, b.Provider) })
	return out, nil
}

func clone(a *models.OAuthApp) *models.OAuthApp {
	out := *a
	out.Scopes = slices.Clone(a.Scopes)
	return &out
}
