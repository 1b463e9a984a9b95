package service

import (
	"context"
	"strings"
	"time"

	"fitgate/internal/auth/models"
	jwttoken "fitgate/internal/jwt_token"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

// Token exchanges a grant for an access token.
func (s *Service) Token(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if !id.GrantType(req.GrantType).IsValid() {
		return nil, dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported grant_type")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer s.observeTokenDuration(req.GrantType, start)

	switch id.GrantType(req.GrantType) {
	case id.GrantTypeAuthorizationCode:
		return s.exchangeAuthorizationCode(ctx, req)
	case id.GrantTypeClientCredentials:
		return s.clientCredentials(ctx, req)
	case id.GrantTypeRefreshToken:
		return s.refresh(ctx, req)
	default:
		return nil, dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported grant_type")
	}
}

// issueParams carries everything needed to mint one token response.
type issueParams struct {
	Grant         id.GrantType
	TenantID      id.TenantID
	PrincipalID   string
	PrincipalKind id.PrincipalKind
	ClientID      string
	Scopes        []string
	WithRefresh   bool
}

// issueTokens signs the access token, records it, and optionally creates a
// fresh refresh token bound to the same principal and scopes.
func (s *Service) issueTokens(ctx context.Context, p issueParams) (*models.TokenResult, error) {
	issued, err := s.jwt.Issue(ctx, jwtParams(p))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	var refresh string
	if p.WithRefresh {
		refresh, err = secrets.Generate()
		if err != nil {
			return nil, err
		}
		record, err := models.NewRefreshToken(refresh, p.TenantID, p.PrincipalID, p.PrincipalKind, p.ClientID,
			p.Scopes, requestcontext.Now(ctx), s.refreshTokenTTL)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInternal, err.Error())
		}
		if err := s.refreshTokens.Create(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
		}
	}

	if err := s.tokens.Save(ctx, &models.TokenRecord{
		JTI:            issued.JTI,
		TenantID:       p.TenantID,
		PrincipalID:    p.PrincipalID,
		PrincipalKind:  p.PrincipalKind,
		ClientID:       p.ClientID,
		Scopes:         p.Scopes,
		IssuedAt:       issued.IssuedAt,
		ExpiresAt:      issued.ExpiresAt,
		RefreshTokenID: refresh,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record access token")
	}

	s.incrementTokensIssued(string(p.Grant))
	s.logAudit(ctx, "token.issued",
		"tenant_id", p.TenantID,
		"principal_id", p.PrincipalID,
		"principal_kind", p.PrincipalKind,
		"client_id", p.ClientID,
		"grant_type", p.Grant,
		"jti", issued.JTI,
	)

	return &models.TokenResult{
		AccessToken:  issued.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(issued.ExpiresAt.Sub(issued.IssuedAt).Seconds()),
		RefreshToken: refresh,
		Scope:        strings.Join(p.Scopes, " "),
	}, nil
}

func jwtParams(p issueParams) jwttoken.IssueParams {
	return jwttoken.IssueParams{
		TenantID:      p.TenantID,
		PrincipalID:   p.PrincipalID,
		PrincipalKind: p.PrincipalKind,
		ClientID:      p.ClientID,
		Scopes:        p.Scopes,
	}
}

// requireActiveTenant reloads the tenant so a suspension made after the
// grant was created still blocks issuance.
func (s *Service) requireActiveTenant(ctx context.Context, tenantID id.TenantID) error {
	tenant, err := s.directory.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if !tenant.IsActive() {
		s.authFailure(ctx, "tenant_suspended", false, "tenant_id", tenantID)
		return dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}
	return nil
}
