package jwttoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

// AccessTokenClaims represents the JWT claims for gateway access tokens.
// The subject is the principal id; PrincipalKind says whether it names a
// user or a client.
type AccessTokenClaims struct {
	TenantID      string           `json:"tenant_id"`
	PrincipalKind id.PrincipalKind `json:"pk"`
	ClientID      string           `json:"client_id,omitempty"`
	Scope         []string         `json:"scope"`
	Env           string           `json:"env,omitempty"`
	jwt.RegisteredClaims
}

// IssueParams describes the token to mint.
type IssueParams struct {
	TenantID      id.TenantID
	PrincipalID   string
	PrincipalKind id.PrincipalKind
	ClientID      string
	Scopes        []string
}

// IssuedToken is a signed access token with the fields callers persist.
type IssuedToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey    []byte
	issuerBaseURL string // Base URL for per-tenant issuers (RFC 8414)
	audience      string
	tokenTTL      time.Duration
	env           string
}

func NewJWTService(signingKey string, issuerBaseURL string, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey:    []byte(signingKey),
		issuerBaseURL: strings.TrimRight(issuerBaseURL, "/"),
		audience:      audience,
		tokenTTL:      tokenTTL,
	}
}

// BuildIssuer constructs a per-tenant issuer URL following RFC 8414 format.
// Format: {baseURL}/tenants/{tenantID}
func (s *JWTService) BuildIssuer(tenantID id.TenantID) string {
	if tenantID.IsNil() {
		return s.issuerBaseURL
	}
	return fmt.Sprintf("%s/tenants/%s", s.issuerBaseURL, tenantID.String())
}

func (s *JWTService) TTL() time.Duration {
	return s.tokenTTL
}

// SetEnv annotates issued tokens with an environment string (e.g., "demo").
func (s *JWTService) SetEnv(env string) {
	s.env = env
}

// Issue signs a new access token with a random hex JTI.
func (s *JWTService) Issue(ctx context.Context, p IssueParams) (*IssuedToken, error) {
	if p.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant is required")
	}
	if !p.PrincipalKind.IsValid() || p.PrincipalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(p.Scopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "scopes cannot be empty")
	}

	jti, err := secrets.HexID(16)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).Truncate(time.Second)
	expiresAt := now.Add(s.tokenTTL)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		TenantID:      p.TenantID.String(),
		PrincipalKind: p.PrincipalKind,
		ClientID:      p.ClientID,
		Scope:         p.Scopes,
		Env:           s.env,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.PrincipalID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.BuildIssuer(p.TenantID),
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return &IssuedToken{Token: signedToken, JTI: jti, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// ValidateToken verifies signature, algorithm, expiry, audience and that the
// issuer is the one minted for the token's own tenant.
func (s *JWTService) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeTokenExpired, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if err := s.checkIssuer(claims); err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" || !claims.PrincipalKind.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ParseTokenSkipClaimsValidation parses a token WITHOUT validating expiration or standard claims.
//
// Only the revocation endpoint uses it, so that an expired token can still be
// revoked by JTI. Signature and algorithm are still verified.
func (s *JWTService) ParseTokenSkipClaimsValidation(tokenString string) (*AccessTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty token")
	}

	claims := new(AccessTokenClaims)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unexpected signing algorithm")
		}
		return s.signingKey, nil
	},
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid jwt signature")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jwt parse failed")
	}

	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid jwt signature")
	}

	return claims, nil
}

func (s *JWTService) checkIssuer(claims *AccessTokenClaims) error {
	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token tenant")
	}
	if claims.Issuer != s.BuildIssuer(tenantID) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token issuer")
	}
	return nil
}
