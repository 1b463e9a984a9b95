package service

import (
	"context"

	"fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
)

// Store is the persistence contract for tenants and their principals.
// Lookups return sentinel.ErrNotFound, duplicate inserts sentinel.ErrConflict.
type Store interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
	FindTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID id.TenantID, mutate func(*models.Tenant) error) (*models.Tenant, error)

	CreateUser(ctx context.Context, u *models.User) error
	FindUser(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.User, error)
	FindUserByEmail(ctx context.Context, tenantID id.TenantID, email string) (*models.User, error)

	CreateClient(ctx context.Context, c *models.Client) error
	FindClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error)
	FindClientByOAuthID(ctx context.Context, oauthClientID string) (*models.Client, error)
	ListClients(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error)
	UpdateClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID, mutate func(*models.Client) error) (*models.Client, error)
}

// ChangeListener is told when a tenant's visible configuration changes.
type ChangeListener func(tenantID id.TenantID)
