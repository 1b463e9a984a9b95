package models

import (
	"slices"
	"time"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// ClientKind separates interactive tool clients from autonomous agents.
type ClientKind string

const (
	ClientKindInteractive ClientKind = "interactive"
	ClientKindAgent       ClientKind = "agent"
)

func (k ClientKind) IsValid() bool {
	return k == ClientKindInteractive || k == ClientKindAgent
}

// Client is a registered caller of the gateway. The redirect URI list is the
// tenant-scoped allowlist consulted by the authorization-code flow.
type Client struct {
	ID               id.ClientID  `json:"id"`
	TenantID         id.TenantID  `json:"tenant_id"`
	Name             string       `json:"name"`
	Kind             ClientKind   `json:"kind"`
	OAuthClientID    string       `json:"client_id"`
	ClientSecretHash string       `json:"-"`
	RedirectURIs     []string     `json:"redirect_uris,omitempty"`
	AllowedGrants    []string     `json:"allowed_grants"`
	AllowedScopes    []string     `json:"allowed_scopes"`
	Status           ClientStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func NewClient(
	clientID id.ClientID,
	tenantID id.TenantID,
	name string,
	kind ClientKind,
	oauthClientID string,
	clientSecretHash string,
	redirectURIs []string,
	allowedGrants []string,
	allowedScopes []string,
	now time.Time,
) (*Client, error) {
	if name == "" || len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name must be 1-128 characters")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client kind is invalid")
	}
	if oauthClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client_id cannot be empty")
	}
	if len(allowedGrants) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "allowed_grants cannot be empty")
	}
	for _, g := range allowedGrants {
		grant := id.GrantType(g)
		if !grant.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "unsupported grant type: "+g)
		}
		if grant.RequiresConfidentialClient() && clientSecretHash == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "public clients cannot use "+g)
		}
	}
	if slices.Contains(allowedGrants, string(id.GrantTypeAuthorizationCode)) && len(redirectURIs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "redirect_uris required for authorization_code")
	}
	for _, uri := range redirectURIs {
		if err := ValidateRedirectURI(uri); err != nil {
			return nil, err
		}
	}
	if len(allowedScopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "allowed_scopes cannot be empty")
	}
	for _, s := range allowedScopes {
		if !id.IsKnownScope(s) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown scope: "+s)
		}
	}
	return &Client{
		ID:               clientID,
		TenantID:         tenantID,
		Name:             name,
		Kind:             kind,
		OAuthClientID:    oauthClientID,
		ClientSecretHash: clientSecretHash,
		RedirectURIs:     slices.Clone(redirectURIs),
		AllowedGrants:    slices.Clone(allowedGrants),
		AllowedScopes:    slices.Clone(allowedScopes),
		Status:           ClientStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (c *Client) IsActive() bool {
	return c.Status == ClientStatusActive
}

func (c *Client) Deactivate(now time.Time) error {
	if !c.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "client is already inactive")
	}
	c.Status = ClientStatusInactive
	c.UpdatedAt = now
	return nil
}

// IsConfidential reports whether the client authenticates with a secret.
func (c *Client) IsConfidential() bool {
	return c.ClientSecretHash != ""
}

func (c *Client) CanUseGrant(grant id.GrantType) bool {
	if grant.RequiresConfidentialClient() && !c.IsConfidential() {
		return false
	}
	return slices.Contains(c.AllowedGrants, string(grant))
}

// AllowsRedirect reports an exact match against the registered allowlist.
func (c *Client) AllowsRedirect(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}
