// Package httptransport assembles the gateway's HTTP surface: the shared
// middleware chain and the public, authenticated and operator route groups.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fitgate/pkg/platform/middleware/admin"
	authmw "fitgate/pkg/platform/middleware/auth"
	"fitgate/pkg/platform/middleware/metadata"
	"fitgate/pkg/platform/middleware/request"
	"fitgate/pkg/platform/middleware/requesttime"
)

// Routes is a component with unauthenticated endpoints.
type Routes interface {
	Register(r chi.Router)
}

// SplitRoutes is a component with both public and authenticated endpoints.
type SplitRoutes interface {
	Routes
	RegisterAuthenticated(r chi.Router)
}

// TenantRoutes is the tenant handler: operator routes plus self-service
// client registration.
type TenantRoutes interface {
	RegisterAdmin(r chi.Router)
	HandleRegisterClient(w http.ResponseWriter, r *http.Request)
}

// Deps is everything the router mounts.
type Deps struct {
	Auth      SplitRoutes
	AgentCard SplitRoutes
	Tenants   TenantRoutes
	Providers Routes
	Health    Routes

	// MCP and A2A are the JSON-RPC dispatchers.
	MCP http.Handler
	A2A http.Handler

	Resolver authmw.Resolver
	Gatherer prometheus.Gatherer
	Metrics  *request.Metrics
	Metadata *metadata.Config
	Logger   *slog.Logger

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	AdminToken     string
}

// NewRouter wires every endpoint behind the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(d.Metadata).Handler)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(d.Metrics))
	if d.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(d.MaxBodyBytes))
	}
	if d.RequestTimeout > 0 {
		r.Use(request.Timeout(d.RequestTimeout))
	}
	r.Use(request.ContentType("application/json", "application/x-www-form-urlencoded"))

	// Public: probes, metrics, discovery, token endpoints.
	d.Health.Register(r)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	d.Auth.Register(r)
	d.AgentCard.Register(r)

	// JSON-RPC endpoints decide per method whether a suspended tenant may
	// proceed, so suspension is not enforced by the middleware.
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Resolver, logger, authmw.DeferSuspension()))
		r.Method(http.MethodPost, "/mcp", d.MCP)
		r.Method(http.MethodPost, "/a2a", d.A2A)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Resolver, logger))
		d.Auth.RegisterAuthenticated(r)
		d.AgentCard.RegisterAuthenticated(r)
		d.Providers.Register(r)
		r.Post("/oauth2/register", d.Tenants.HandleRegisterClient)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, logger))
		d.Tenants.RegisterAdmin(r)
	})

	return r
}
