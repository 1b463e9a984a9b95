package service

import (
	"context"
	"net/url"
	"slices"
	"time"

	"fitgate/internal/auth/models"
	tenantModels "fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

// Authorize records a pending authorization-code grant for the signed-in
// user and returns the URL the user agent is sent back to. The state and code
// are generated here; the client only ever echoes them.
func (s *Service) Authorize(ctx context.Context, auth id.AuthContext, req *models.AuthorizeRequest) (*models.AuthorizationResult, error) {
	start := time.Now()
	defer s.observeAuthorizeDuration(start)

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if auth.PrincipalKind != id.PrincipalUser {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "a signed-in user is required")
	}
	userID, err := id.ParseUserID(auth.PrincipalID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "a signed-in user is required")
	}

	client, tenant, err := s.directory.ResolveClient(ctx, req.ClientID)
	if err != nil {
		s.authFailure(ctx, "unknown_client", false, "client_id", req.ClientID)
		return nil, err
	}
	// Clients of other tenants are indistinguishable from unknown ones.
	if client.TenantID != auth.TenantID {
		s.authFailure(ctx, "cross_tenant_client", false, "client_id", req.ClientID, "tenant_id", auth.TenantID)
		return nil, dErrors.New(dErrors.CodeInvalidClient, "unknown client")
	}
	if !tenant.IsActive() {
		return nil, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}
	if !client.CanUseGrant(id.GrantTypeAuthorizationCode) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "client may not use authorization_code")
	}
	if !client.AllowsRedirect(req.RedirectURI) {
		s.authFailure(ctx, "redirect_not_allowed", false, "client_id", req.ClientID)
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "redirect_uri not registered for client")
	}
	scopes, err := grantableScopes(id.ParseScope(req.Scope), client)
	if err != nil {
		return nil, err
	}

	state, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	code, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	record, err := models.NewAuthorizationRequest(state, code, req.CodeChallenge, tenant.ID, client.OAuthClientID,
		userID, req.RedirectURI, scopes, now, s.authRequestTTL)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.authRequests.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store authorization request")
	}

	location, err := buildRedirect(req.RedirectURI, code, state)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "auth.authorized",
		"tenant_id", tenant.ID, "user_id", userID, "client_id", client.OAuthClientID)

	return &models.AuthorizationResult{
		AuthorizationURL: location,
		State:            state,
		ExpiresIn:        int(s.authRequestTTL.Seconds()),
	}, nil
}

// grantableScopes resolves the requested scopes against the client's
// allowance. An empty request grants everything the client is allowed.
func grantableScopes(requested []string, client *tenantModels.Client) ([]string, error) {
	for _, scope := range requested {
		if !id.IsKnownScope(scope) || !slices.Contains(client.AllowedScopes, scope) {
			return nil, dErrors.New(dErrors.CodeInvalidScope, "scope not allowed: "+scope)
		}
	}
	scopes := id.IntersectScopes(requested, client.AllowedScopes)
	if len(scopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidScope, "no grantable scopes")
	}
	return scopes, nil
}

func buildRedirect(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "invalid redirect_uri")
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
