package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fitgate/internal/audit"
	authService "fitgate/internal/auth/service"
	"fitgate/internal/auth/store/authrequest"
	"fitgate/internal/auth/store/refreshtoken"
	"fitgate/internal/auth/store/revocation"
	"fitgate/internal/auth/store/token"
	"fitgate/internal/auth/workers/cleanup"
	"fitgate/internal/platform/config"
	"fitgate/internal/platform/database"
	"fitgate/internal/platform/health"
	"fitgate/internal/platform/kafka"
	"fitgate/internal/platform/kafka/producer"
	"fitgate/internal/platform/redis"
	"fitgate/internal/ratelimit/limiter"
	"fitgate/internal/ratelimit/store/bucket"
	"fitgate/internal/task/executor"
	taskManager "fitgate/internal/task/manager"
	taskStore "fitgate/internal/task/store"
	"fitgate/migrations"
	id "fitgate/pkg/domain"
)

// revocationList is both sides of the revocation list: the authorization
// server writes it and the resolver reads it.
type revocationList interface {
	Revoke(ctx context.Context, tenantID id.TenantID, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// taskRecords serves both the task manager and the executor.
type taskRecords interface {
	taskManager.Store
	executor.Store
}

// stores holds the backing stores picked from configuration: Postgres and
// Redis when configured, in-memory otherwise.
type stores struct {
	pool     *database.Pool
	redis    *redis.Client
	producer *producer.Producer

	authRequests  *authrequest.InMemoryStore
	refreshTokens authService.RefreshTokenStore
	tokens        *token.InMemoryStore
	revocations   revocationList
	tasks         taskRecords
	buckets       limiter.BucketStore
	events        audit.Store

	// expirers are the stores without native TTLs, swept by the cleanup worker.
	expirers []cleanup.Target
}

func openStores(ctx context.Context, cfg config.Server, checks *health.Handler, log *slog.Logger) (*stores, error) {
	s := &stores{
		authRequests: authrequest.NewInMemoryStore(),
		tokens:       token.NewInMemoryStore(),
	}
	s.expirers = append(s.expirers,
		cleanup.Target{Name: "authorization_requests", Store: s.authRequests},
		cleanup.Target{Name: "token_records", Store: s.tokens},
	)

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	if pool != nil {
		if err := pool.Migrate(ctx, migrations.FS); err != nil {
			s.close(ctx)
			return nil, err
		}
		checks.RegisterCheck("postgres", pool.Health)
		log.Info("using postgres stores")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.redis = client
	if client != nil {
		checks.RegisterCheck("redis", client.Health)
		log.Info("using redis for revocations and rate limits")
	}

	switch {
	case pool != nil:
		refresh := refreshtoken.NewPostgres(pool.DB())
		s.refreshTokens = refresh
		s.expirers = append(s.expirers, cleanup.Target{Name: "refresh_tokens", Store: refresh})
		s.tasks = taskStore.NewPostgres(pool.DB())
	default:
		refresh := refreshtoken.NewInMemoryStore()
		s.refreshTokens = refresh
		s.expirers = append(s.expirers, cleanup.Target{Name: "refresh_tokens", Store: refresh})
		s.tasks = taskStore.NewInMemoryStore()
	}

	switch {
	case client != nil:
		s.revocations = revocation.NewRedisList(client)
		s.buckets = bucket.NewRedis(client)
	case pool != nil:
		revs := revocation.NewPostgresList(pool.DB())
		buckets := bucket.NewPostgres(pool.DB())
		s.revocations, s.buckets = revs, buckets
		s.expirers = append(s.expirers,
			cleanup.Target{Name: "revocations", Store: revs},
			cleanup.Target{Name: "rate_limit_events", Store: buckets},
		)
	default:
		revs := revocation.NewInMemoryList()
		buckets := bucket.NewInMemoryBucketStore()
		s.revocations, s.buckets = revs, buckets
		s.expirers = append(s.expirers,
			cleanup.Target{Name: "revocations", Store: revs},
			cleanup.Target{Name: "rate_limit_buckets", Store: buckets},
		)
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		s.producer = p
		s.events = audit.NewKafkaStore(p, cfg.Kafka.TaskEventsTopic)
		checks.RegisterCheck("kafka", kafka.NewHealthChecker(cfg.Kafka.Brokers).Check)
		log.Info("publishing task events", "topic", cfg.Kafka.TaskEventsTopic)
	}
	return s, nil
}

// close releases connections in reverse order of opening. The producer is
// flushed within ctx.
func (s *stores) close(ctx context.Context) {
	if s.producer != nil {
		_ = s.producer.Close(ctx)
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	_ = s.pool.Close()
}
