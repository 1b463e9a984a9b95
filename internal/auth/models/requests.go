package models

import (
	"strings"

	"fitgate/pkg/validation"
)

// AuthorizeRequest carries the query or JSON parameters of /oauth2/authorize.
type AuthorizeRequest struct {
	ClientID            string `json:"client_id" validate:"required,max=100"`
	RedirectURI         string `json:"redirect_uri" validate:"required,max=2048"`
	ResponseType        string `json:"response_type" validate:"omitempty,eq=code"`
	Scope               string `json:"scope" validate:"max=512"`
	CodeChallenge       string `json:"code_challenge" validate:"required,min=43,max=128"`
	CodeChallengeMethod string `json:"code_challenge_method" validate:"required,eq=S256"`
}

func (r *AuthorizeRequest) Normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.Scope = strings.TrimSpace(r.Scope)
}

func (r *AuthorizeRequest) Validate() error {
	return validation.Validate(r)
}

// TokenRequest is the union of the three grant shapes accepted by
// /oauth2/token. Per-grant required fields are checked by the service.
type TokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required,oneof=authorization_code refresh_token client_credentials"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	State        string `json:"state"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (r *TokenRequest) Normalize() {
	r.GrantType = strings.TrimSpace(r.GrantType)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.Scope = strings.TrimSpace(r.Scope)
}

func (r *TokenRequest) Validate() error {
	return validation.Validate(r)
}

type RevokeRequest struct {
	Token         string `json:"token" validate:"required"`
	TokenTypeHint string `json:"token_type_hint" validate:"omitempty,oneof=access_token refresh_token"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
}

func (r *RevokeRequest) Validate() error {
	return validation.Validate(r)
}

type LoginRequest struct {
	Tenant   string `json:"tenant" validate:"required,max=63"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=256"`
}

func (r *LoginRequest) Normalize() {
	r.Tenant = strings.ToLower(strings.TrimSpace(r.Tenant))
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}
