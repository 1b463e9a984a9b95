package models

import (
	"slices"
	"time"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// This file contains pure domain models for the authorization server.

// CodeChallengeMethodS256 is the only PKCE method accepted.
const CodeChallengeMethodS256 = "S256"

// AuthorizationRequest is a pending authorization-code grant, keyed by the
// server-generated state. Lifecycle: 10 minutes, consumed exactly once.
type AuthorizationRequest struct {
	State               string
	Code                string
	CodeChallenge       string
	CodeChallengeMethod string
	TenantID            id.TenantID
	ClientID            string
	UserID              id.UserID
	RedirectURI         string
	Scopes              []string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Consumed            bool
}

func NewAuthorizationRequest(
	state, code, challenge string,
	tenantID id.TenantID,
	clientID string,
	userID id.UserID,
	redirectURI string,
	scopes []string,
	now time.Time,
	ttl time.Duration,
) (*AuthorizationRequest, error) {
	if state == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "state and code cannot be empty")
	}
	if challenge == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "code_challenge is required")
	}
	if redirectURI == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "redirect URI cannot be empty")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authorization request ttl must be positive")
	}
	return &AuthorizationRequest{
		State:               state,
		Code:                code,
		CodeChallenge:       challenge,
		CodeChallengeMethod: CodeChallengeMethodS256,
		TenantID:            tenantID,
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scopes:              slices.Clone(scopes),
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}, nil
}

func (a *AuthorizationRequest) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Matches reports whether the presented code, redirect URI and client id are
// the ones the request was created for.
func (a *AuthorizationRequest) Matches(code, redirectURI, clientID string) bool {
	return a.Code == code && a.RedirectURI == redirectURI && a.ClientID == clientID
}

// RefreshTokenRecord is an opaque single-use refresh token. Rotation marks
// the presented token used and issues a new one.
type RefreshTokenRecord struct {
	Token         string
	TenantID      id.TenantID
	PrincipalID   string
	PrincipalKind id.PrincipalKind
	ClientID      string
	Scopes        []string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Used          bool
	UsedAt        *time.Time
}

func NewRefreshToken(token string, tenantID id.TenantID, principalID string, kind id.PrincipalKind, clientID string, scopes []string, now time.Time, ttl time.Duration) (*RefreshTokenRecord, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refresh token cannot be empty")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refresh token ttl must be positive")
	}
	if len(scopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "scopes cannot be empty")
	}
	return &RefreshTokenRecord{
		Token:         token,
		TenantID:      tenantID,
		PrincipalID:   principalID,
		PrincipalKind: kind,
		ClientID:      clientID,
		Scopes:        slices.Clone(scopes),
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

func (r *RefreshTokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ValidateForConsume checks if the refresh token can be consumed.
func (r *RefreshTokenRecord) ValidateForConsume(now time.Time) error {
	if r.IsExpired(now) {
		return dErrors.New(dErrors.CodeInvalidGrant, "refresh token expired")
	}
	if r.Used {
		return dErrors.New(dErrors.CodeInvalidGrant, "refresh token already used")
	}
	return nil
}

// MarkUsed returns false if the token was already used.
func (r *RefreshTokenRecord) MarkUsed(at time.Time) bool {
	if r.Used {
		return false
	}
	r.Used = true
	r.UsedAt = &at
	return true
}

// TokenRecord is the immutable record of an issued access token. Revocation
// lives in a separate list keyed by JTI.
type TokenRecord struct {
	JTI            string
	TenantID       id.TenantID
	PrincipalID    string
	PrincipalKind  id.PrincipalKind
	ClientID       string
	Scopes         []string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	RefreshTokenID string
}

// OAuthApp holds a tenant's credentials for an upstream fitness provider.
type OAuthApp struct {
	ID           id.OAuthAppID
	TenantID     id.TenantID
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	Scopes       []string
}

func (a *OAuthApp) Validate() error {
	if a.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "oauth app must belong to a tenant")
	}
	if a.Provider == "" || a.ClientID == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "oauth app provider and client_id are required")
	}
	if a.AuthorizeURL == "" || a.TokenURL == "" || a.RedirectURI == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "oauth app urls are required")
	}
	return nil
}
