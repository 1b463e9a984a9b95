package service

import (
	"context"
	"slices"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/secrets"
)

// sessionGrant labels session tokens in metrics and audit logs.
const sessionGrant id.GrantType = "password_session"

// Login authenticates a user by password and issues a browser session: an
// access token carried in a cookie plus a CSRF token for double-submit.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tenant, user, err := s.directory.AuthenticateUser(ctx, req.Tenant, req.Email, req.Password)
	if err != nil {
		s.authFailure(ctx, "invalid_credentials", false, "tenant", req.Tenant)
		return nil, err
	}
	if !tenant.IsActive() {
		s.authFailure(ctx, "tenant_suspended", false, "tenant_id", tenant.ID)
		return nil, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}

	result, err := s.issueTokens(ctx, issueParams{
		Grant:         sessionGrant,
		TenantID:      tenant.ID,
		PrincipalID:   user.ID.String(),
		PrincipalKind: id.PrincipalUser,
		Scopes:        slices.Clone(id.KnownScopes),
	})
	if err != nil {
		return nil, err
	}
	csrf, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	return &models.LoginResult{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
		TenantID:    tenant.ID.String(),
		UserID:      user.ID.String(),
		CSRFToken:   csrf,
	}, nil
}

// Metadata returns the RFC 8414 authorization server metadata document.
func (s *Service) Metadata() *models.ServerMetadata {
	return &models.ServerMetadata{
		Issuer:                            s.baseURL,
		AuthorizationEndpoint:             s.baseURL + "/oauth2/authorize",
		TokenEndpoint:                     s.baseURL + "/oauth2/token",
		RevocationEndpoint:                s.baseURL + "/oauth2/revoke",
		RegistrationEndpoint:              s.baseURL + "/oauth2/register",
		ScopesSupported:                   slices.Clone(id.KnownScopes),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{string(id.GrantTypeAuthorizationCode), string(id.GrantTypeClientCredentials), string(id.GrantTypeRefreshToken)},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{models.CodeChallengeMethodS256},
	}
}
