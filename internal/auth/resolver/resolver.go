package resolver

import (
	"context"
	"log/slog"
	"time"

	jwttoken "fitgate/internal/jwt_token"
	tenantModels "fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	authmw "fitgate/pkg/platform/middleware/auth"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

const defaultCacheTTL = 30 * time.Second

type TokenValidator interface {
	ValidateToken(token string) (*jwttoken.AccessTokenClaims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Directory loads tenants and principals. Lookups are keyed by tenant and
// a record of another tenant is reported as not found.
type Directory interface {
	GetTenant(ctx context.Context, tenantID id.TenantID) (*tenantModels.Tenant, error)
	GetUser(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*tenantModels.User, error)
	GetClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*tenantModels.Client, error)
}

// Resolver turns a presented credential into an AuthContext. It is the only
// place tenant identity is established; nothing downstream reads tenant ids
// from request input.
type Resolver struct {
	validator   TokenValidator
	revocations RevocationChecker
	directory   Directory
	cache       *ttlCache
	logger      *slog.Logger
}

type Option func(*Resolver)

// WithCacheTTL bounds how long tenant and principal records are reused.
// Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = newTTLCache(ttl)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func New(validator TokenValidator, revocations RevocationChecker, directory Directory, opts ...Option) *Resolver {
	r := &Resolver{
		validator:   validator,
		revocations: revocations,
		directory:   directory,
		cache:       newTTLCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// InvalidateTenant drops cached records of a tenant. Registered as a tenant
// change listener so suspension takes effect on the next request.
func (r *Resolver) InvalidateTenant(tenantID id.TenantID) {
	r.cache.invalidateTenant(tenantID)
}

var errInvalid = dErrors.New(dErrors.CodeUnauthorized, "invalid token")

// Resolve validates the credential and loads the caller's identity.
func (r *Resolver) Resolve(ctx context.Context, cred authmw.Credential) (id.AuthContext, error) {
	token := cred.Token()
	if token == "" {
		return id.AuthContext{}, dErrors.New(dErrors.CodeUnauthorized, "missing credential")
	}
	if cred.IsSession() && cred.StateChanging {
		if cred.CSRFHeader == "" || !secrets.Equal(cred.CSRFHeader, cred.CSRFCookie) {
			r.logger.WarnContext(ctx, "csrf token mismatch", "request_id", requestcontext.RequestID(ctx))
			return id.AuthContext{}, dErrors.New(dErrors.CodeUnauthorized, "csrf token mismatch")
		}
	}

	claims, err := r.validator.ValidateToken(token)
	if err != nil {
		return id.AuthContext{}, err
	}
	if claims.ID == "" {
		return id.AuthContext{}, errInvalid
	}

	revoked, err := r.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return id.AuthContext{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check revocation")
	}
	if revoked {
		return id.AuthContext{}, dErrors.New(dErrors.CodeTokenRevoked, "token revoked")
	}

	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return id.AuthContext{}, errInvalid
	}
	tenant, err := r.tenant(ctx, tenantID)
	if err != nil {
		return id.AuthContext{}, err
	}

	auth := id.AuthContext{
		TenantID:      tenant.ID,
		PrincipalID:   claims.Subject,
		PrincipalKind: claims.PrincipalKind,
		ClientID:      claims.ClientID,
		Scopes:        claims.Scope,
		TokenID:       claims.ID,
	}
	switch claims.PrincipalKind {
	case id.PrincipalUser:
		user, err := r.user(ctx, tenant.ID, claims.Subject)
		if err != nil {
			return id.AuthContext{}, err
		}
		auth.Role = user.Role
	case id.PrincipalClient:
		if _, err := r.client(ctx, tenant.ID, claims.Subject); err != nil {
			return id.AuthContext{}, err
		}
		auth.Role = id.RoleMember
	default:
		return id.AuthContext{}, errInvalid
	}

	if !tenant.IsActive() {
		if cred.EnforceSuspension {
			return id.AuthContext{}, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
		}
		auth.TenantSuspended = true
	}
	return auth, nil
}

func (r *Resolver) tenant(ctx context.Context, tenantID id.TenantID) (*tenantModels.Tenant, error) {
	key := cacheKey{tenant: tenantID, kind: kindTenant}
	if v, ok := r.cache.get(key); ok {
		return v.(*tenantModels.Tenant), nil
	}
	tenant, err := r.directory.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, lookupErr(err)
	}
	r.cache.set(key, tenant)
	return tenant, nil
}

func (r *Resolver) user(ctx context.Context, tenantID id.TenantID, subject string) (*tenantModels.User, error) {
	userID, err := id.ParseUserID(subject)
	if err != nil {
		return nil, errInvalid
	}
	key := cacheKey{tenant: tenantID, kind: kindUser, id: subject}
	if v, ok := r.cache.get(key); ok {
		return v.(*tenantModels.User), nil
	}
	user, err := r.directory.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, lookupErr(err)
	}
	r.cache.set(key, user)
	return user, nil
}

func (r *Resolver) client(ctx context.Context, tenantID id.TenantID, subject string) (*tenantModels.Client, error) {
	clientID, err := id.ParseClientID(subject)
	if err != nil {
		return nil, errInvalid
	}
	key := cacheKey{tenant: tenantID, kind: kindClient, id: subject}
	if v, ok := r.cache.get(key); ok {
		return v.(*tenantModels.Client), nil
	}
	client, err := r.directory.GetClient(ctx, tenantID, clientID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if !client.IsActive() {
		return nil, errInvalid
	}
	r.cache.set(key, client)
	return client, nil
}

// lookupErr hides missing records behind the generic invalid-token error.
func lookupErr(err error) error {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return errInvalid
	}
	return err
}
