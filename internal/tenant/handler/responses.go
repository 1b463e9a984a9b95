package handler

import (
	"strings"
	"time"

	"fitgate/internal/tenant/models"
)

type TenantResponse struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Slug               string              `json:"slug"`
	Status             models.TenantStatus `json:"status"`
	DisabledTools      []string            `json:"disabled_tools"`
	RateLimitPerMinute int                 `json:"rate_limit_per_minute,omitempty"`
	ConfigVersion      uint64              `json:"config_version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	SuspendedAt        *time.Time          `json:"suspended_at,omitempty"`
}

// ClientRegistrationResponse follows RFC 7591 §3.2.1. The secret is only
// present in the registration response.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	ClientName              string   `json:"client_name"`
	Kind                    string   `json:"kind"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	GrantTypes              []string `json:"grant_types"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

func toTenantResponse(t *models.Tenant) *TenantResponse {
	disabled := t.DisabledTools
	if disabled == nil {
		disabled = []string{}
	}
	return &TenantResponse{
		ID:                 t.ID.String(),
		Name:               t.Name,
		Slug:               t.Slug,
		Status:             t.Status,
		DisabledTools:      disabled,
		RateLimitPerMinute: t.RateLimitPerMinute,
		ConfigVersion:      t.ConfigVersion,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		SuspendedAt:        t.SuspendedAt,
	}
}

func toRegistrationResponse(c *models.Client, secret string) *ClientRegistrationResponse {
	method := "client_secret_basic"
	if !c.IsConfidential() {
		method = "none"
	}
	return &ClientRegistrationResponse{
		ClientID:                c.OAuthClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        c.CreatedAt.Unix(),
		ClientSecretExpiresAt:   0,
		ClientName:              c.Name,
		Kind:                    string(c.Kind),
		RedirectURIs:            c.RedirectURIs,
		GrantTypes:              c.AllowedGrants,
		Scope:                   strings.Join(c.AllowedScopes, " "),
		TokenEndpointAuthMethod: method,
	}
}
