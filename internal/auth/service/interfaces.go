package service

import (
	"context"
	"time"

	"fitgate/internal/auth/models"
	jwttoken "fitgate/internal/jwt_token"
	id "fitgate/pkg/domain"
)

// AuthRequestStore holds pending authorization requests keyed by state.
// Error contract: ConsumeByState returns sentinel errors for every failure.
type AuthRequestStore interface {
	Create(ctx context.Context, req *models.AuthorizationRequest) error
	ConsumeByState(ctx context.Context, state, code, redirectURI, clientID string, now time.Time) (*models.AuthorizationRequest, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshTokenRecord) error
	Find(ctx context.Context, token string) (*models.RefreshTokenRecord, error)
	Consume(ctx context.Context, token string, now time.Time) (*models.RefreshTokenRecord, error)
	Delete(ctx context.Context, token string) error
}

type TokenRecordStore interface {
	Save(ctx context.Context, record *models.TokenRecord) error
}

type RevocationList interface {
	Revoke(ctx context.Context, tenantID id.TenantID, jti string, expiresAt time.Time) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, p jwttoken.IssueParams) (*jwttoken.IssuedToken, error)
	ParseTokenSkipClaimsValidation(token string) (*jwttoken.AccessTokenClaims, error)
	BuildIssuer(tenantID id.TenantID) string
	TTL() time.Duration
}
