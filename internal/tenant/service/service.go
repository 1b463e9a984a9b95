package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"fitgate/internal/tenant/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

// Service is the credential store facade: tenants, users and registered
// clients, with secrets kept only as bcrypt hashes.
type Service struct {
	store     Store
	logger    *slog.Logger
	listeners []ChangeListener
}

func New(store Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Service{
		store:     store,
		logger:    cfg.logger,
		listeners: cfg.listeners,
	}
}

// OnChange adds a listener after construction, for components built later
// in the wiring order.
func (s *Service) OnChange(fn ChangeListener) {
	s.listeners = append(s.listeners, fn)
}

func (s *Service) CreateTenant(ctx context.Context, cmd *CreateTenantCommand) (*models.Tenant, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	tenantID := cmd.ID
	if tenantID.IsNil() {
		tenantID = id.TenantID(uuid.New())
	}
	now := requestcontext.Now(ctx)
	tenant, err := models.NewTenant(tenantID, cmd.Name, cmd.Slug, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if len(cmd.DisabledTools) > 0 {
		tenant.SetDisabledTools(cmd.DisabledTools, now)
	}
	if err := tenant.SetRateLimit(cmd.RateLimitPerMinute, now); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant slug already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}
	s.logAudit(ctx, "tenant.created", "tenant_id", tenant.ID, "slug", tenant.Slug)
	return tenant, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	tenant, err := s.store.FindTenant(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	return tenant, nil
}

func (s *Service) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	tenant, err := s.store.FindTenantBySlug(ctx, slug)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	return tenant, nil
}

func (s *Service) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, nil
}

// Suspend blocks new token issuance and task creation. Tokens already
// issued keep working for reads until they expire.
func (s *Service) Suspend(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.updateTenant(ctx, tenantID, "tenant.suspended", func(t *models.Tenant) error {
		return t.Suspend(requestcontext.Now(ctx))
	})
}

func (s *Service) Reactivate(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.updateTenant(ctx, tenantID, "tenant.reactivated", func(t *models.Tenant) error {
		return t.Reactivate(requestcontext.Now(ctx))
	})
}

// SetToolPolicy replaces the list of tools hidden from the tenant.
func (s *Service) SetToolPolicy(ctx context.Context, tenantID id.TenantID, disabled []string) (*models.Tenant, error) {
	return s.updateTenant(ctx, tenantID, "tenant.tool_policy_changed", func(t *models.Tenant) error {
		t.SetDisabledTools(disabled, requestcontext.Now(ctx))
		return nil
	})
}

func (s *Service) SetRateLimit(ctx context.Context, tenantID id.TenantID, perMinute int) (*models.Tenant, error) {
	return s.updateTenant(ctx, tenantID, "tenant.rate_limit_changed", func(t *models.Tenant) error {
		return t.SetRateLimit(perMinute, requestcontext.Now(ctx))
	})
}

func (s *Service) updateTenant(ctx context.Context, tenantID id.TenantID, action string, mutate func(*models.Tenant) error) (*models.Tenant, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	tenant, err := s.store.UpdateTenant(ctx, tenantID, mutate)
	if err != nil {
		return nil, wrapMutationErr(err, wrapTenantErr(err, "failed to update tenant"))
	}
	s.logAudit(ctx, action, "tenant_id", tenant.ID, "config_version", tenant.ConfigVersion)
	for _, fn := range s.listeners {
		fn(tenant.ID)
	}
	return tenant, nil
}

func (s *Service) CreateUser(ctx context.Context, cmd *CreateUserCommand) (*models.User, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetTenant(ctx, cmd.TenantID); err != nil {
		return nil, err
	}
	hash := cmd.PasswordHash
	if hash == "" && cmd.Password != "" {
		h, err := secrets.Hash(cmd.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	userID := cmd.ID
	if userID.IsNil() {
		userID = id.UserID(uuid.New())
	}
	user, err := models.NewUser(userID, cmd.TenantID, cmd.Email, cmd.DisplayName, cmd.Role, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "user already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.logAudit(ctx, "user.created", "tenant_id", user.TenantID, "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.User, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	user, err := s.store.FindUser(ctx, tenantID, userID)
	if err != nil {
		return nil, wrapUserErr(err, "failed to load user")
	}
	return user, nil
}

// AuthenticateUser verifies a password login. Every failure, including an
// unknown tenant or email, collapses into one unauthorized error.
func (s *Service) AuthenticateUser(ctx context.Context, slug, email, password string) (*models.Tenant, *models.User, error) {
	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	tenant, err := s.store.FindTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, invalid
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	user, err := s.store.FindUserByEmail(ctx, tenant.ID, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, invalid
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user.PasswordHash == "" {
		return nil, nil, invalid
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, nil, invalid
		}
		return nil, nil, err
	}
	return tenant, user, nil
}

// RegisterClient creates a client under an active tenant. The cleartext
// secret is returned once and never stored.
func (s *Service) RegisterClient(ctx context.Context, cmd *RegisterClientCommand) (*models.Client, string, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, "", err
	}
	tenant, err := s.GetTenant(ctx, cmd.TenantID)
	if err != nil {
		return nil, "", err
	}
	if !tenant.IsActive() {
		return nil, "", dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}
	for _, scope := range cmd.Scopes() {
		if !id.IsKnownScope(scope) {
			return nil, "", dErrors.New(dErrors.CodeInvalidScope, "unknown scope: "+scope)
		}
	}

	secret, secretHash := cmd.ClientSecret, cmd.ClientSecretHash
	if !cmd.Public && secretHash != "" {
		secret = ""
	} else if !cmd.Public {
		if secret == "" {
			if secret, err = secrets.Generate(); err != nil {
				return nil, "", err
			}
		}
		if secretHash, err = secrets.Hash(secret); err != nil {
			return nil, "", err
		}
	} else {
		secret = ""
	}
	oauthClientID := cmd.OAuthClientID
	if oauthClientID == "" {
		oauthClientID = uuid.NewString()
	}

	client, err := models.NewClient(
		id.ClientID(uuid.New()),
		tenant.ID,
		cmd.Name,
		cmd.Kind,
		oauthClientID,
		secretHash,
		cmd.RedirectURIs,
		cmd.GrantTypes,
		cmd.Scopes(),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, "", dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "client_id already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create client")
	}
	s.logAudit(ctx, "client.registered",
		"tenant_id", client.TenantID,
		"client_id", client.ID,
		"kind", client.Kind,
	)
	return client, secret, nil
}

func (s *Service) GetClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	client, err := s.store.FindClient(ctx, tenantID, clientID)
	if err != nil {
		return nil, wrapClientErr(err, "failed to load client")
	}
	return client, nil
}

func (s *Service) ListClients(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	clients, err := s.store.ListClients(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to list clients")
	}
	return clients, nil
}

// ResolveClient looks a client up by its public OAuth client_id.
func (s *Service) ResolveClient(ctx context.Context, oauthClientID string) (*models.Client, *models.Tenant, error) {
	if oauthClientID == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvalidClient, "client_id is required")
	}
	client, err := s.store.FindClientByOAuthID(ctx, oauthClientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeInvalidClient, "unknown client")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
	}
	if !client.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeInvalidClient, "client is inactive")
	}
	tenant, err := s.store.FindTenant(ctx, client.TenantID)
	if err != nil {
		return nil, nil, wrapTenantErr(err, "failed to load tenant")
	}
	return client, tenant, nil
}

// AuthenticateClient resolves the client and checks its secret. Public
// clients must present no secret; confidential clients must present theirs.
func (s *Service) AuthenticateClient(ctx context.Context, oauthClientID, secret string) (*models.Client, *models.Tenant, error) {
	client, tenant, err := s.ResolveClient(ctx, oauthClientID)
	if err != nil {
		return nil, nil, err
	}
	if !client.IsConfidential() {
		if secret != "" {
			return nil, nil, dErrors.New(dErrors.CodeInvalidClient, "public client must not present a secret")
		}
		return client, tenant, nil
	}
	if secret == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvalidClient, "client authentication required")
	}
	if err := secrets.Verify(secret, client.ClientSecretHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, nil, dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")
		}
		return nil, nil, err
	}
	return client, tenant, nil
}

func (s *Service) DeactivateClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	client, err := s.store.UpdateClient(ctx, tenantID, clientID, func(c *models.Client) error {
		return c.Deactivate(requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, wrapMutationErr(err, wrapClientErr(err, "failed to deactivate client"))
	}
	s.logAudit(ctx, "client.deactivated", "tenant_id", tenantID, "client_id", clientID)
	return client, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append(attrs, "event", event, "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, event, args...)
}

func requireTenantID(tenantID id.TenantID) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "tenant ID required")
	}
	return nil
}

func wrapTenantErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func wrapUserErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func wrapClientErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "client not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// wrapMutationErr surfaces a rejected state change as a conflict and keeps
// other domain errors as they are.
func wrapMutationErr(err, fallback error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeConflict, err.Error())
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return fallback
}
