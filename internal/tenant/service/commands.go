package service

import (
	"strings"

	"fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/validation"
)

type CreateTenantCommand struct {
	ID                 id.TenantID `json:"id"`
	Name               string      `json:"name" validate:"required,notblank,max=128"`
	Slug               string      `json:"slug" validate:"required"`
	DisabledTools      []string    `json:"disabled_tools"`
	RateLimitPerMinute int         `json:"rate_limit_per_minute" validate:"min=0"`
}

func (c *CreateTenantCommand) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
	return validation.Validate(c)
}

type CreateUserCommand struct {
	ID          id.UserID   `json:"id"`
	TenantID    id.TenantID `json:"tenant_id"`
	Email       string      `json:"email" validate:"required,email"`
	DisplayName string      `json:"display_name" validate:"max=128"`
	Role        id.Role     `json:"role" validate:"required,oneof=owner admin member"`
	// PasswordHash is a bcrypt hash; Password is hashed when no hash is given.
	PasswordHash string `json:"password_hash"`
	Password     string `json:"password"`
}

func (c *CreateUserCommand) Validate() error {
	c.Email = models.NormalizeEmail(c.Email)
	return validation.Validate(c)
}

// RegisterClientCommand is the per-tenant client registration request.
// Agents default to client_credentials; interactive clients to
// authorization_code + refresh_token.
type RegisterClientCommand struct {
	TenantID      id.TenantID       `json:"-"`
	Name          string            `json:"client_name" validate:"required,notblank,max=128"`
	Kind          models.ClientKind `json:"kind" validate:"required,oneof=interactive agent"`
	RedirectURIs  []string          `json:"redirect_uris" validate:"max=10"`
	GrantTypes    []string          `json:"grant_types"`
	Scope         string            `json:"scope"`
	Public        bool              `json:"public"`
	OAuthClientID string            `json:"-"`
	ClientSecret  string            `json:"-"`
	// ClientSecretHash registers a secret minted elsewhere, such as a seed
	// file. It wins over ClientSecret.
	ClientSecretHash string `json:"-"`
}

func (c *RegisterClientCommand) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	if len(c.GrantTypes) == 0 {
		if c.Kind == models.ClientKindAgent {
			c.GrantTypes = []string{string(id.GrantTypeClientCredentials)}
		} else {
			c.GrantTypes = []string{string(id.GrantTypeAuthorizationCode), string(id.GrantTypeRefreshToken)}
		}
	}
}

func (c *RegisterClientCommand) Validate() error {
	return validation.Validate(c)
}

// Scopes returns the requested scopes, defaulting to every known scope.
func (c *RegisterClientCommand) Scopes() []string {
	if scopes := id.ParseScope(c.Scope); len(scopes) > 0 {
		return scopes
	}
	return append([]string(nil), id.KnownScopes...)
}
