package service

import (
	"context"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

// exchangeAuthorizationCode redeems a pending authorization request.
//
// Order matters: the client is authenticated first so a bad secret does not
// burn the request, then the request is consumed by state (atomic, single
// use), then the PKCE verifier is checked. A failed verifier still leaves the
// request consumed, so a replay cannot retry with another verifier.
func (s *Service) exchangeAuthorizationCode(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error) {
	if req.State == "" || req.Code == "" || req.CodeVerifier == "" || req.RedirectURI == "" || req.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "state, code, code_verifier, redirect_uri and client_id are required")
	}

	client, _, err := s.directory.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		s.authFailure(ctx, "client_authentication_failed", false, "client_id", req.ClientID)
		return nil, err
	}
	if !client.CanUseGrant(id.GrantTypeAuthorizationCode) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "client may not use authorization_code")
	}

	now := requestcontext.Now(ctx)
	authReq, err := s.authRequests.ConsumeByState(ctx, req.State, req.Code, req.RedirectURI, req.ClientID, now)
	if err != nil {
		return nil, s.handleConsumeError(ctx, err, req.ClientID, flowAuthorizationCode)
	}
	if authReq.TenantID != client.TenantID {
		s.authFailure(ctx, "tenant_mismatch", false, "client_id", req.ClientID)
		return nil, dErrors.New(dErrors.CodeStateMismatch, "authorization request does not match")
	}

	if !models.VerifyPKCE(req.CodeVerifier, authReq.CodeChallenge) {
		s.authFailure(ctx, "pkce_failed", false, "client_id", req.ClientID, "tenant_id", authReq.TenantID)
		return nil, dErrors.New(dErrors.CodeProofInvalid, "code_verifier does not match code_challenge")
	}

	if err := s.requireActiveTenant(ctx, authReq.TenantID); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetUser(ctx, authReq.TenantID, authReq.UserID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidGrant, "user no longer exists")
		}
		return nil, err
	}

	return s.issueTokens(ctx, issueParams{
		Grant:         id.GrantTypeAuthorizationCode,
		TenantID:      authReq.TenantID,
		PrincipalID:   authReq.UserID.String(),
		PrincipalKind: id.PrincipalUser,
		ClientID:      authReq.ClientID,
		Scopes:        authReq.Scopes,
		WithRefresh:   client.CanUseGrant(id.GrantTypeRefreshToken),
	})
}
