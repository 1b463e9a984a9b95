package policy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tenantService "fitgate/internal/tenant/service"
	tenantStore "fitgate/internal/tenant/store"
	"fitgate/internal/tools"
	id "fitgate/pkg/domain"
)

func TestPolicyFollowsTenantConfig(t *testing.T) {
	ctx := context.Background()
	tenants := tenantService.New(tenantStore.NewInMemoryStore())
	a, err := tenants.CreateTenant(ctx, &tenantService.CreateTenantCommand{Name: "A", Slug: "aa"})
	require.NoError(t, err)
	b, err := tenants.CreateTenant(ctx, &tenantService.CreateTenantCommand{Name: "B", Slug: "bb"})
	require.NoError(t, err)
	p := New(tenants)

	_, err = tenants.SetToolPolicy(ctx, a.ID, []string{"list_activities", "get_athlete", "list_activities"})
	require.NoError(t, err)
	_, err = tenants.SetToolPolicy(ctx, b.ID, []string{"get_athlete", "list_activities"})
	require.NoError(t, err)

	pa, err := p.For(ctx, a.ID, tools.ProtocolMCP)
	require.NoError(t, err)
	pb, err := p.For(ctx, b.ID, tools.ProtocolMCP)
	require.NoError(t, err)
	assert.Equal(t, pa, pb, "same disabled set yields the same policy")
	assert.True(t, pa.Disabled("get_athlete"))

	_, ok := p.TenantLimit(ctx, a.ID)
	assert.False(t, ok)
	_, err = tenants.SetRateLimit(ctx, a.ID, 5)
	require.NoError(t, err)
	n, ok := p.TenantLimit(ctx, a.ID)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, err = p.For(ctx, id.TenantID(uuid.New()), tools.ProtocolA2A)
	assert.Error(t, err)
}
