package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fitgate/internal/a2a"
	"fitgate/internal/agentcard"
	"fitgate/internal/audit"
	authHandler "fitgate/internal/auth/handler"
	authMetrics "fitgate/internal/auth/metrics"
	"fitgate/internal/auth/resolver"
	authService "fitgate/internal/auth/service"
	"fitgate/internal/auth/store/oauthapp"
	"fitgate/internal/auth/workers/cleanup"
	fitnessModels "fitgate/internal/fitness/models"
	fitnessService "fitgate/internal/fitness/service"
	fitnessStore "fitgate/internal/fitness/store"
	"fitgate/internal/jsonrpc"
	jwttoken "fitgate/internal/jwt_token"
	"fitgate/internal/mcp"
	"fitgate/internal/platform/config"
	"fitgate/internal/platform/health"
	"fitgate/internal/platform/metrics"
	"fitgate/internal/policy"
	"fitgate/internal/provider"
	"fitgate/internal/ratelimit/limiter"
	"fitgate/internal/seeder"
	"fitgate/internal/task/executor"
	taskManager "fitgate/internal/task/manager"
	"fitgate/internal/task/observer"
	"fitgate/internal/task/runners"
	tenantHandler "fitgate/internal/tenant/handler"
	tenantService "fitgate/internal/tenant/service"
	tenantStore "fitgate/internal/tenant/store"
	"fitgate/internal/tools"
	"fitgate/internal/tools/builtin"
	httptransport "fitgate/internal/transport/http"
	"fitgate/pkg/platform/circuit"
	"fitgate/pkg/platform/middleware/request"
)

const (
	serviceName        = "fitgate"
	serviceDescription = "Fitness data tools and analysis tasks for AI assistants and agents"
)

// app is the assembled gateway: the router plus the background workers
// that run alongside it.
type app struct {
	router   http.Handler
	executor *executor.Executor
	cleanup  *cleanup.CleanupService
	cards    *agentcard.Service
	seeder   *seeder.Seeder
	events   *audit.Publisher
	stores   *stores
	cfg      config.Server
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := health.New(cfg.Environment)
	st, err := openStores(ctx, cfg, checks, log)
	if err != nil {
		return nil, err
	}
	if st.redis != nil {
		if err := st.redis.RegisterPoolMetrics(reg); err != nil {
			log.Warn("redis pool metrics not registered", "error", err)
		}
	}

	// Tenants and identity.
	tenants := tenantService.New(tenantStore.NewInMemoryStore(), tenantService.WithLogger(log))
	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.BaseURL, cfg.Auth.Audience, cfg.Auth.AccessTokenTTL)
	jwt.SetEnv(cfg.Environment)
	res := resolver.New(jwt, st.revocations, tenants,
		resolver.WithCacheTTL(cfg.Auth.ResolverCache),
		resolver.WithLogger(log),
	)
	tenants.OnChange(res.InvalidateTenant)

	auth := authService.New(tenants, authService.Stores{
		AuthRequests:  st.authRequests,
		RefreshTokens: st.refreshTokens,
		Tokens:        st.tokens,
		Revocations:   st.revocations,
	}, jwt,
		authService.WithLogger(log),
		authService.WithMetrics(authMetrics.New(reg)),
		authService.WithBaseURL(cfg.BaseURL),
		authService.WithAuthRequestTTL(cfg.Auth.AuthRequestTTL),
		authService.WithRefreshTokenTTL(cfg.Auth.RefreshTokenTTL),
	)

	// Fitness data and tasks.
	fitnessData := fitnessStore.NewInMemoryStore()
	fitness := fitnessService.New(fitnessData)

	observers := observer.Multi{observer.NewMetrics(m), observer.NewLog(log)}
	var events *audit.Publisher
	if st.events != nil {
		events = audit.NewPublisher(st.events,
			audit.WithAsyncBuffer(1024),
			audit.WithPublisherLogger(log),
		)
		observers = append(observers, observer.NewEvents(events, log))
	}
	exec := executor.New(st.tasks, map[string]executor.Runner{
		runners.TypeFitnessAnalysis: runners.NewAnalysis(fitness),
	},
		executor.WithWorkers(cfg.Tasks.Workers),
		executor.WithQueueSize(cfg.Tasks.QueueSize),
		executor.WithTimeout(cfg.Tasks.Timeout),
		executor.WithPickupDelay(cfg.Tasks.PickupDelay),
		executor.WithObserver(observers),
		executor.WithLogger(log),
		executor.WithMetrics(m),
	)
	tasks := taskManager.New(st.tasks, exec,
		taskManager.WithObserver(observers),
		taskManager.WithLogger(log),
	)

	// Tools, policy and rate limits.
	registry := tools.New(tools.WithLogger(log), tools.WithMetrics(m))
	if err := builtin.Register(registry, fitness, tasks); err != nil {
		st.close(ctx)
		return nil, err
	}
	policies := policy.New(tenants)
	limits := limiter.New(st.buckets, cfg.RateLimit.RequestsPerMinute,
		limiter.WithTenantLimits(policies),
		limiter.WithLogger(log),
		limiter.WithMetrics(m),
	)

	// Protocol endpoints.
	mcpDispatcher := jsonrpc.New(string(tools.ProtocolMCP), dispatcherOptions(cfg, limits, m, log)...)
	mcp.New(registry, policies, mcp.ServerInfo{Name: serviceName, Title: "Fitness Gateway", Version: health.Version}, log).
		Register(mcpDispatcher)
	a2aDispatcher := jsonrpc.New(string(tools.ProtocolA2A), dispatcherOptions(cfg, limits, m, log)...)
	a2a.New(tasks, registry, policies, a2a.ServerInfo{Name: serviceName, Version: health.Version, Description: serviceDescription}, log).
		Register(a2aDispatcher)

	cards := agentcard.New(registry, tenants, limits, agentcard.Info{
		Name:        serviceName,
		Description: serviceDescription,
		Version:     health.Version,
		BaseURL:     cfg.BaseURL,
	}, log)

	// Provider connections.
	apps := oauthapp.NewInMemoryStore()
	pending := provider.NewInMemoryPendingStore()
	exchanger := provider.NewHTTPExchanger(fitnessModels.KnownProviders(),
		provider.WithHTTPClient(&http.Client{Timeout: cfg.Providers.HTTPTimeout}),
		provider.WithBreakerOptions(
			circuit.WithFailureThreshold(cfg.Providers.FailureThreshold),
			circuit.WithCooldown(cfg.Providers.Cooldown),
		),
	)
	providers := provider.New(apps, pending, exchanger, fitnessData,
		provider.WithMetrics(m),
		provider.WithLogger(log),
	)

	sweeper, err := cleanup.New(
		append(st.expirers, cleanup.Target{Name: "provider_states", Store: pending}),
		cleanup.WithCleanupInterval(cfg.CleanupInterval),
		cleanup.WithCleanupLogger(log),
	)
	if err != nil {
		st.close(ctx)
		return nil, err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:           authHandler.New(auth, log, cfg.Auth.SecureCookies),
		AgentCard:      agentcard.NewHandler(cards, log),
		Tenants:        tenantHandler.New(tenants, log),
		Providers:      provider.NewHandler(providers, log),
		Health:         checks,
		MCP:            mcpDispatcher,
		A2A:            a2aDispatcher,
		Resolver:       res,
		Gatherer:       reg,
		Metrics:        request.NewMetrics(reg),
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AdminToken:     cfg.AdminToken,
	})
	if cfg.AdminToken == "" {
		log.Info("operator API disabled: ADMIN_API_TOKEN is not set")
	}

	return &app{
		router:   router,
		executor: exec,
		cleanup:  sweeper,
		cards:    cards,
		seeder:   seeder.New(tenants, apps, fitnessData, log),
		events:   events,
		stores:   st,
		cfg:      cfg,
	}, nil
}

func dispatcherOptions(cfg config.Server, limits *limiter.Limiter, m *metrics.Metrics, log *slog.Logger) []jsonrpc.Option {
	return []jsonrpc.Option{
		jsonrpc.WithTimeout(cfg.DispatchTimeout),
		jsonrpc.WithLimiter(limits),
		jsonrpc.WithMetrics(m),
		jsonrpc.WithLogger(log),
	}
}

// seed applies the YAML bootstrap file before the server accepts traffic.
func (a *app) seed(ctx context.Context, path string) error {
	file, err := seeder.Load(path)
	if err != nil {
		return err
	}
	_, err = a.seeder.Apply(ctx, file)
	return err
}

// close drains the event publisher before the producer is flushed.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if a.events != nil {
		a.events.Close()
	}
	a.stores.close(ctx)
}
