package handler

import (
	"strings"

	"fitgate/internal/tenant/models"
	"fitgate/internal/tenant/service"
	id "fitgate/pkg/domain"
	"fitgate/pkg/validation"
)

// RegisterClientRequest follows the RFC 7591 field names.
type RegisterClientRequest struct {
	ClientName   string   `json:"client_name" validate:"required,notblank,max=128"`
	Kind         string   `json:"kind" validate:"omitempty,oneof=interactive agent"`
	RedirectURIs []string `json:"redirect_uris" validate:"max=10,dive,required"`
	GrantTypes   []string `json:"grant_types" validate:"dive,oneof=authorization_code refresh_token client_credentials"`
	Scope        string   `json:"scope"`
	// TokenEndpointAuthMethod "none" registers a public client.
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method" validate:"omitempty,oneof=none client_secret_basic client_secret_post"`
}

func (r *RegisterClientRequest) Normalize() {
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.Scope = strings.TrimSpace(r.Scope)
	if r.Kind == "" {
		r.Kind = string(models.ClientKindInteractive)
		if len(r.RedirectURIs) == 0 {
			r.Kind = string(models.ClientKindAgent)
		}
	}
}

func (r *RegisterClientRequest) Validate() error {
	return validation.Validate(r)
}

func (r *RegisterClientRequest) ToCommand(tenantID id.TenantID) *service.RegisterClientCommand {
	return &service.RegisterClientCommand{
		TenantID:     tenantID,
		Name:         r.ClientName,
		Kind:         models.ClientKind(r.Kind),
		RedirectURIs: r.RedirectURIs,
		GrantTypes:   r.GrantTypes,
		Scope:        r.Scope,
		Public:       r.TokenEndpointAuthMethod == "none",
	}
}

type CreateTenantRequest struct {
	Name               string   `json:"name" validate:"required,notblank,max=128"`
	Slug               string   `json:"slug" validate:"required"`
	DisabledTools      []string `json:"disabled_tools"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute" validate:"min=0"`
}

func (r *CreateTenantRequest) Validate() error {
	return validation.Validate(r)
}

type ToolPolicyRequest struct {
	DisabledTools []string `json:"disabled_tools" validate:"dive,required"`
}

func (r *ToolPolicyRequest) Validate() error {
	return validation.Validate(r)
}
