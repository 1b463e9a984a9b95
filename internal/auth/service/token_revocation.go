package service

import (
	"context"
	"errors"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
)

const (
	tokenTypeAccess  = "access_token"
	tokenTypeRefresh = "refresh_token"
)

// Revoke implements RFC 7009. The client must authenticate, but the outcome
// for the token itself is never reported: unknown tokens, tokens of other
// clients and already revoked tokens all succeed silently.
func (s *Service) Revoke(ctx context.Context, req *models.RevokeRequest) error {
	if req == nil || req.ClientID == "" {
		return dErrors.New(dErrors.CodeInvalidClient, "client authentication required")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	client, _, err := s.directory.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		s.authFailure(ctx, "client_authentication_failed", false, "client_id", req.ClientID)
		return err
	}

	order := []string{tokenTypeAccess, tokenTypeRefresh}
	if req.TokenTypeHint == tokenTypeRefresh {
		order = []string{tokenTypeRefresh, tokenTypeAccess}
	}
	for _, kind := range order {
		var done bool
		switch kind {
		case tokenTypeAccess:
			done, err = s.revokeAccessToken(ctx, req.Token, client.OAuthClientID, client.TenantID)
		case tokenTypeRefresh:
			done, err = s.revokeRefreshToken(ctx, req.Token, client.OAuthClientID, client.TenantID)
		}
		if err != nil {
			return err
		}
		if done {
			if s.metrics != nil {
				s.metrics.IncrementRevocations(kind)
			}
			s.logAudit(ctx, "token.revoked", "client_id", client.OAuthClientID, "tenant_id", client.TenantID, "token_type", kind)
			return nil
		}
	}
	return nil
}

func (s *Service) revokeAccessToken(ctx context.Context, token, clientID string, tenantID id.TenantID) (bool, error) {
	claims, err := s.jwt.ParseTokenSkipClaimsValidation(token)
	if err != nil {
		return false, nil
	}
	if claims.ClientID != clientID || claims.TenantID != tenantID.String() || claims.ExpiresAt == nil {
		return false, nil
	}
	if err := s.revocations.Revoke(ctx, tenantID, claims.ID, claims.ExpiresAt.Time); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	return true, nil
}

func (s *Service) revokeRefreshToken(ctx context.Context, token, clientID string, tenantID id.TenantID) (bool, error) {
	record, err := s.refreshTokens.Find(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load refresh token")
	}
	if record.ClientID != clientID || record.TenantID != tenantID {
		return false, nil
	}
	if err := s.refreshTokens.Delete(ctx, token); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh token")
	}
	return true, nil
}
