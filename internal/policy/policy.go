// Package policy derives per-tenant tool visibility and rate limits from
// tenant configuration.
package policy

import (
	"context"

	tenantModels "fitgate/internal/tenant/models"
	"fitgate/internal/tools"
	id "fitgate/pkg/domain"
)

type TenantSource interface {
	GetTenant(ctx context.Context, tenantID id.TenantID) (*tenantModels.Tenant, error)
}

type Policies struct {
	tenants TenantSource
}

func New(tenants TenantSource) *Policies {
	return &Policies{tenants: tenants}
}

// For returns the tool policy of a tenant on one endpoint.
func (p *Policies) For(ctx context.Context, tenantID id.TenantID, protocol tools.Protocol) (tools.Policy, error) {
	tenant, err := p.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return tools.Policy{}, err
	}
	return Of(tenant, protocol), nil
}

// Of builds the policy from a loaded tenant. Only the tool policy is read,
// so tenants with the same disabled set get the same Policy.
func Of(tenant *tenantModels.Tenant, protocol tools.Protocol) tools.Policy {
	return tools.Policy{Protocol: protocol, DisabledTools: tenant.DisabledTools}
}

// TenantLimit reports a tenant's per-minute override, if it has one.
func (p *Policies) TenantLimit(ctx context.Context, tenantID id.TenantID) (int, bool) {
	tenant, err := p.tenants.GetTenant(ctx, tenantID)
	if err != nil || tenant.RateLimitPerMinute <= 0 {
		return 0, false
	}
	return tenant.RateLimitPerMinute, true
}
