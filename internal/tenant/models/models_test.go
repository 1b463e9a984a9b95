package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestValidateRedirectURI(t *testing.T) {
	valid := []string{
		"https://assistant.example.com/callback",
		"http://localhost:33418/callback",
		"http://127.0.0.1:8080/cb",
		"http://[::1]:9000/cb",
	}
	for _, uri := range valid {
		assert.NoError(t, ValidateRedirectURI(uri), uri)
	}

	invalid := []string{
		"",
		"/relative/callback",
		"https://*.example.com/cb",
		"https://example.com/cb#frag",
		"http://example.com/cb",
		"ftp://example.com/cb",
	}
	for _, uri := range invalid {
		err := ValidateRedirectURI(uri)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), uri)
	}
}

func TestNewClient(t *testing.T) {
	tenantID := id.TenantID(uuid.New())

	t.Run("public client cannot use client_credentials", func(t *testing.T) {
		_, err := NewClient(id.ClientID(uuid.New()), tenantID, "agent", ClientKindAgent, "cid", "",
			nil, []string{"client_credentials"}, []string{id.ScopeFitnessRead}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("authorization_code requires redirect uris", func(t *testing.T) {
		_, err := NewClient(id.ClientID(uuid.New()), tenantID, "assistant", ClientKindInteractive, "cid", "",
			nil, []string{"authorization_code"}, []string{id.ScopeFitnessRead}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unknown scope rejected", func(t *testing.T) {
		_, err := NewClient(id.ClientID(uuid.New()), tenantID, "agent", ClientKindAgent, "cid", "hash",
			nil, []string{"client_credentials"}, []string{"admin:all"}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("valid interactive client", func(t *testing.T) {
		c, err := NewClient(id.ClientID(uuid.New()), tenantID, "assistant", ClientKindInteractive, "cid", "",
			[]string{"http://localhost:3000/cb"},
			[]string{"authorization_code", "refresh_token"},
			[]string{id.ScopeFitnessRead}, now)
		require.NoError(t, err)
		assert.True(t, c.CanUseGrant(id.GrantTypeAuthorizationCode))
		assert.False(t, c.CanUseGrant(id.GrantTypeClientCredentials))
		assert.True(t, c.AllowsRedirect("http://localhost:3000/cb"))
		assert.False(t, c.AllowsRedirect("http://localhost:3000/cb/"))
	})
}

func TestTenantLifecycle(t *testing.T) {
	tenant, err := NewTenant(id.TenantID(uuid.New()), "Harbour Runners", "harbour-runners", now)
	require.NoError(t, err)
	v := tenant.ConfigVersion

	require.NoError(t, tenant.Suspend(now.Add(time.Hour)))
	assert.False(t, tenant.IsActive())
	assert.NotNil(t, tenant.SuspendedAt)
	assert.Greater(t, tenant.ConfigVersion, v)

	err = tenant.Suspend(now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	require.NoError(t, tenant.Reactivate(now.Add(2*time.Hour)))
	assert.True(t, tenant.IsActive())
	assert.Nil(t, tenant.SuspendedAt)
}

func TestTenantToolPolicy(t *testing.T) {
	tenant, err := NewTenant(id.TenantID(uuid.New()), "Club", "club", now)
	require.NoError(t, err)

	tenant.SetDisabledTools([]string{"get_athlete", "list_activities", "get_athlete"}, now)

	assert.Equal(t, []string{"get_athlete", "list_activities"}, tenant.DisabledTools)
	assert.True(t, tenant.ToolDisabled("get_athlete"))
	assert.False(t, tenant.ToolDisabled("get_activity"))
}

func TestTenantSlug(t *testing.T) {
	for _, bad := range []string{"", "a", "Upper", "-lead", "trail-", "sp ace"} {
		_, err := NewTenant(id.TenantID(uuid.New()), "x", bad, now)
		assert.Error(t, err, bad)
	}
}
