// Package provider links a user to an upstream fitness provider with the
// tenant's registered OAuth app. The gateway runs the authorization-code
// flow with PKCE itself; tokens are stored and never returned to callers.
package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	authModels "fitgate/internal/auth/models"
	fitnessModels "fitgate/internal/fitness/models"
	"fitgate/internal/platform/metrics"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

const pendingTTL = 10 * time.Minute

type Apps interface {
	FindByProvider(ctx context.Context, tenantID id.TenantID, provider string) (*authModels.OAuthApp, error)
}

type PendingStore interface {
	Save(ctx context.Context, p *Pending) error
	Consume(ctx context.Context, state string, now time.Time) (*Pending, error)
}

type Exchanger interface {
	Exchange(ctx context.Context, app *authModels.OAuthApp, code, verifier string) (*TokenSet, error)
}

type Connections interface {
	SaveConnection(ctx context.Context, c *fitnessModels.Connection) error
}

type Service struct {
	apps        Apps
	pending     PendingStore
	exchanger   Exchanger
	connections Connections
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(apps Apps, pending PendingStore, exchanger Exchanger, connections Connections, opts ...Option) *Service {
	s := &Service{
		apps:        apps,
		pending:     pending,
		exchanger:   exchanger,
		connections: connections,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ConnectResult struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	ExpiresIn        int    `json:"expires_in"`
}

// Connect starts a connection for the signed-in user and returns the
// provider URL to send the browser to.
func (s *Service) Connect(ctx context.Context, auth id.AuthContext, provider string) (*ConnectResult, error) {
	userID, err := connectingUser(auth)
	if err != nil {
		return nil, err
	}
	app, err := s.app(ctx, auth.TenantID, provider)
	if err != nil {
		return nil, err
	}

	state, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	verifier, err := secrets.Token(48)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if err := s.pending.Save(ctx, &Pending{
		State:       state,
		Verifier:    verifier,
		TenantID:    auth.TenantID,
		UserID:      userID,
		Provider:    app.Provider,
		RedirectURI: app.RedirectURI,
		ExpiresAt:   now.Add(pendingTTL),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store connect state")
	}

	authURL, err := url.Parse(app.AuthorizeURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "oauth app has an invalid authorize url")
	}
	q := authURL.Query()
	q.Set("response_type", "code")
	q.Set("client_id", app.ClientID)
	q.Set("redirect_uri", app.RedirectURI)
	q.Set("state", state)
	q.Set("code_challenge", authModels.S256Challenge(verifier))
	q.Set("code_challenge_method", authModels.CodeChallengeMethodS256)
	if len(app.Scopes) > 0 {
		q.Set("scope", strings.Join(app.Scopes, " "))
	}
	authURL.RawQuery = q.Encode()

	s.logger.InfoContext(ctx, "provider connect started",
		"tenant_id", auth.TenantID,
		"provider", app.Provider,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &ConnectResult{
		AuthorizationURL: authURL.String(),
		State:            state,
		ExpiresIn:        int(pendingTTL / time.Second),
	}, nil
}

// CallbackRequest is the provider redirect back to the gateway.
type CallbackRequest struct {
	Provider         string
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Callback finishes a connect: the state must belong to the same user and
// provider, and is consumed whether or not the exchange succeeds.
func (s *Service) Callback(ctx context.Context, auth id.AuthContext, req *CallbackRequest) (*fitnessModels.Connection, error) {
	userID, err := connectingUser(auth)
	if err != nil {
		return nil, err
	}
	if req.State == "" {
		return nil, dErrors.New(dErrors.CodeStateMismatch, "state is required")
	}
	now := requestcontext.Now(ctx)
	pending, err := s.pending.Consume(ctx, req.State, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeStateMismatch, "unknown or expired state")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connect state")
	}
	if pending.TenantID != auth.TenantID || pending.UserID != userID || !strings.EqualFold(pending.Provider, req.Provider) {
		return nil, dErrors.New(dErrors.CodeStateMismatch, "state does not match this connection")
	}
	if req.Error != "" {
		s.metrics.IncProviderExchange(pending.Provider, "denied")
		return nil, dErrors.New(dErrors.CodeAccessDenied, "provider denied access: "+req.Error)
	}
	if req.Code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "code is required")
	}

	app, err := s.app(ctx, auth.TenantID, pending.Provider)
	if err != nil {
		return nil, err
	}
	tokens, err := s.exchanger.Exchange(ctx, app, req.Code, pending.Verifier)
	if err != nil {
		s.metrics.IncProviderExchange(pending.Provider, string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "provider token exchange failed",
			"error", err,
			"tenant_id", auth.TenantID,
			"provider", pending.Provider,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}
	s.metrics.IncProviderExchange(pending.Provider, "success")

	conn := &fitnessModels.Connection{
		TenantID:     auth.TenantID,
		UserID:       userID,
		Provider:     pending.Provider,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ConnectedAt:  now,
	}
	if tokens.ExpiresIn > 0 {
		conn.ExpiresAt = now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	if err := s.connections.SaveConnection(ctx, conn); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save connection")
	}
	s.logger.InfoContext(ctx, "provider connected",
		"tenant_id", auth.TenantID,
		"provider", pending.Provider,
		"request_id", requestcontext.RequestID(ctx),
	)
	return conn, nil
}

func (s *Service) app(ctx context.Context, tenantID id.TenantID, provider string) (*authModels.OAuthApp, error) {
	provider = strings.ToLower(provider)
	if !fitnessModels.IsKnownProvider(provider) {
		return nil, dErrors.New(dErrors.CodeNotFound, "provider not found")
	}
	app, err := s.apps.FindByProvider(ctx, tenantID, provider)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "provider not configured for tenant")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load oauth app")
	}
	return app, nil
}

// connectingUser allows only active tenants' users: agents act on data that
// users have already connected.
func connectingUser(auth id.AuthContext) (id.UserID, error) {
	if auth.TenantSuspended {
		return id.UserID{}, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}
	if auth.PrincipalKind != id.PrincipalUser {
		return id.UserID{}, dErrors.New(dErrors.CodeForbidden, "only users can connect providers")
	}
	userID, err := id.ParseUserID(auth.PrincipalID)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid principal")
	}
	return userID, nil
}
