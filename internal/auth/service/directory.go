package service

//go:generate mockgen -source=directory.go -destination=mocks/directory_mock.go -package=mocks

import (
	"context"

	tenantModels "fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
)

// Directory is the tenant service as seen by the authorization server.
// Error contract: client lookups fail with CodeInvalidClient, user logins with
// CodeUnauthorized, tenant lookups with CodeNotFound.
type Directory interface {
	ResolveClient(ctx context.Context, oauthClientID string) (*tenantModels.Client, *tenantModels.Tenant, error)
	AuthenticateClient(ctx context.Context, oauthClientID, secret string) (*tenantModels.Client, *tenantModels.Tenant, error)
	AuthenticateUser(ctx context.Context, slug, email, password string) (*tenantModels.Tenant, *tenantModels.User, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*tenantModels.Tenant, error)
	GetUser(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*tenantModels.User, error)
}
