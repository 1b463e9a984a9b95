package service

import (
	"context"
	"slices"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

// refresh rotates a refresh token. The presented token is consumed before
// anything else is checked, so it can never be redeemed twice even when the
// rest of the request is rejected.
func (s *Service) refresh(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error) {
	if req.RefreshToken == "" || req.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "refresh_token and client_id are required")
	}
	client, _, err := s.directory.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		s.authFailure(ctx, "client_authentication_failed", false, "client_id", req.ClientID)
		return nil, err
	}
	if !client.CanUseGrant(id.GrantTypeRefreshToken) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "client may not use refresh_token")
	}

	record, err := s.refreshTokens.Consume(ctx, req.RefreshToken, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.handleConsumeError(ctx, err, req.ClientID, flowRefresh)
	}
	if record.ClientID != client.OAuthClientID || record.TenantID != client.TenantID {
		s.authFailure(ctx, "client_mismatch", false, "client_id", req.ClientID)
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "invalid refresh token")
	}

	scopes := record.Scopes
	if requested := id.ParseScope(req.Scope); len(requested) > 0 {
		for _, scope := range requested {
			if !slices.Contains(record.Scopes, scope) {
				return nil, dErrors.New(dErrors.CodeInvalidScope, "scope exceeds original grant: "+scope)
			}
		}
		scopes = requested
	}

	if err := s.requireActiveTenant(ctx, record.TenantID); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, issueParams{
		Grant:         id.GrantTypeRefreshToken,
		TenantID:      record.TenantID,
		PrincipalID:   record.PrincipalID,
		PrincipalKind: record.PrincipalKind,
		ClientID:      record.ClientID,
		Scopes:        scopes,
		WithRefresh:   true,
	})
}
