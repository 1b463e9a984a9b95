package service

import (
	"context"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// clientCredentials issues a token to a confidential client acting as
// itself. No refresh token is issued; agents re-authenticate instead.
func (s *Service) clientCredentials(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error) {
	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidClient, "client authentication required")
	}
	client, _, err := s.directory.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		s.authFailure(ctx, "client_authentication_failed", false, "client_id", req.ClientID)
		return nil, err
	}
	if !client.CanUseGrant(id.GrantTypeClientCredentials) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "client may not use client_credentials")
	}

	scopes := id.IntersectScopes(id.ParseScope(req.Scope), client.AllowedScopes)
	if len(scopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidScope, "no grantable scopes")
	}
	if err := s.requireActiveTenant(ctx, client.TenantID); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, issueParams{
		Grant:         id.GrantTypeClientCredentials,
		TenantID:      client.TenantID,
		PrincipalID:   client.ID.String(),
		PrincipalKind: id.PrincipalClient,
		ClientID:      client.OAuthClientID,
		Scopes:        scopes,
	})
}
