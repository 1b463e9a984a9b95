// Package limiter enforces the per-principal request budget on the JSON-RPC
// endpoints.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fitgate/internal/platform/metrics"
	"fitgate/internal/ratelimit/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// TenantLimits supplies per-tenant overrides of the request budget.
type TenantLimits interface {
	TenantLimit(ctx context.Context, tenantID id.TenantID) (int, bool)
}

type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// ExceededError is a CodeRateLimited error carrying the retry hint.
type ExceededError struct {
	err        error
	retryAfter int
}

func (e *ExceededError) Error() string          { return e.err.Error() }
func (e *ExceededError) Unwrap() error          { return e.err }
func (e *ExceededError) RetryAfterSeconds() int { return e.retryAfter }

type Limiter struct {
	store     BucketStore
	limit     int
	window    time.Duration
	overrides TenantLimits
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Limiter)

func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

func WithTenantLimits(t TenantLimits) Option {
	return func(l *Limiter) { l.overrides = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New allows limit requests per window (one minute by default) for each
// principal and endpoint. A non-positive limit disables limiting.
func New(store BucketStore, limit int, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit and Window are advertised in the agent card.
func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// LimitFor is the budget per window for a tenant: its override when set,
// otherwise the global limit. A nil limiter reports no limit.
func (l *Limiter) LimitFor(ctx context.Context, tenantID id.TenantID) int {
	if l == nil {
		return 0
	}
	if l.overrides != nil {
		if limit, ok := l.overrides.TenantLimit(ctx, tenantID); ok {
			return limit
		}
	}
	return l.limit
}

// Check consumes one request for the caller. Store failures let the request
// through.
func (l *Limiter) Check(ctx context.Context, auth id.AuthContext, endpoint string) error {
	limit := l.LimitFor(ctx, auth.TenantID)
	if limit <= 0 {
		return nil
	}
	key := models.NewPrincipalKey(auth.TenantID, auth.PrincipalKind, auth.PrincipalID, endpoint)
	res, err := l.store.Allow(ctx, key.String(), limit, l.window)
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit check failed",
			"error", err,
			"tenant_id", auth.TenantID,
			"endpoint", endpoint,
		)
		return nil
	}
	if res.Allowed {
		return nil
	}

	l.metrics.IncRateLimited(endpoint)
	l.logger.WarnContext(ctx, "rate limit exceeded",
		"tenant_id", auth.TenantID,
		"principal_kind", auth.PrincipalKind,
		"endpoint", endpoint,
		"retry_after_seconds", res.RetryAfter,
	)
	return &ExceededError{
		err:        dErrors.New(dErrors.CodeRateLimited, fmt.Sprintf("rate limit of %d requests exceeded", limit)),
		retryAfter: res.RetryAfter,
	}
}
