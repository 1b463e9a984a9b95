package limiter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitgate/internal/platform/metrics"
	"fitgate/internal/ratelimit/models"
	"fitgate/internal/ratelimit/store/bucket"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("redis down")
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func caller() id.AuthContext {
	return id.AuthContext{
		TenantID:      id.TenantID(uuid.New()),
		PrincipalID:   uuid.NewString(),
		PrincipalKind: id.PrincipalClient,
	}
}

func TestLimiterRefusesOverBudget(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	l := New(bucket.NewInMemoryBucketStore(), 2, WithLogger(quiet()), WithMetrics(m))
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	auth := caller()

	require.NoError(t, l.Check(ctx, auth, "mcp"))
	require.NoError(t, l.Check(ctx, auth, "mcp"))

	err := l.Check(ctx, auth, "mcp")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	var hint httputil.RetryAfterError
	require.ErrorAs(t, err, &hint)
	assert.Equal(t, 60, hint.RetryAfterSeconds())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("mcp")))

	assert.NoError(t, l.Check(ctx, auth, "a2a"), "endpoints have separate budgets")
	assert.NoError(t, l.Check(ctx, caller(), "mcp"), "principals have separate budgets")
}

func TestLimiterFailsOpen(t *testing.T) {
	l := New(failingStore{}, 1, WithLogger(quiet()))
	assert.NoError(t, l.Check(context.Background(), caller(), "mcp"))
}

func TestDisabledLimiter(t *testing.T) {
	l := New(failingStore{}, 0)
	assert.NoError(t, l.Check(context.Background(), caller(), "mcp"))

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Check(context.Background(), caller(), "mcp"))
}

type overrides map[id.TenantID]int

func (o overrides) TenantLimit(_ context.Context, tenantID id.TenantID) (int, bool) {
	n, ok := o[tenantID]
	return n, ok
}

func TestTenantOverride(t *testing.T) {
	auth := caller()
	l := New(bucket.NewInMemoryBucketStore(), 100,
		WithLogger(quiet()),
		WithTenantLimits(overrides{auth.TenantID: 1}),
	)
	assert.Equal(t, 1, l.LimitFor(context.Background(), auth.TenantID))
	assert.Equal(t, 100, l.LimitFor(context.Background(), id.TenantID(uuid.New())))

	require.NoError(t, l.Check(context.Background(), auth, "a2a"))
	assert.True(t, dErrors.HasCode(l.Check(context.Background(), auth, "a2a"), dErrors.CodeRateLimited))
}
