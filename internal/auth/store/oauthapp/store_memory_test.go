package oauthapp

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
)

func TestOAuthAppsAreKeyedByTenantAndProvider(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	tenantA := id.TenantID(uuid.New())
	tenantB := id.TenantID(uuid.New())

	app := &models.OAuthApp{
		ID:           id.OAuthAppID(uuid.New()),
		TenantID:     tenantA,
		Provider:     "Strava",
		ClientID:     "strava-client",
		ClientSecret: "shh",
		RedirectURI:  "https://gateway.example.com/providers/strava/callback",
		AuthorizeURL: "https://www.strava.com/oauth/authorize",
		TokenURL:     "https://www.strava.com/oauth/token",
		Scopes:       []string{"activity:read"},
	}
	require.NoError(t, store.Save(ctx, app))

	got, err := store.FindByProvider(ctx, tenantA, "strava")
	require.NoError(t, err)
	assert.Equal(t, "strava-client", got.ClientID)

	_, err = store.FindByProvider(ctx, tenantB, "strava")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	apps, err := store.ListByTenant(ctx, tenantA)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	err = store.Save(ctx, &models.OAuthApp{TenantID: tenantA})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
