package bucket

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fitgate/internal/ratelimit/models"
	"fitgate/pkg/requestcontext"
)

// PostgresBucketStore shares one sliding window per principal between
// gateway replicas. Each admitted request is a row in rate_limit_events.
type PostgresBucketStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresBucketStore {
	return &PostgresBucketStore{db: db}
}

// Allow admits one request if key has budget left in the window ending now.
// An advisory lock on the key serialises concurrent callers.
func (s *PostgresBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if key == "" || limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit: key=%q limit=%d window=%s", key, limit, window)
	}
	now := requestcontext.Now(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, key); err != nil {
		return nil, fmt.Errorf("lock rate limit key: %w", err)
	}

	var (
		used   int
		oldest sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0), MIN(occurred_at)
		FROM rate_limit_events
		WHERE key = $1 AND occurred_at > $2
	`, key, now.Add(-window)).Scan(&used, &oldest)
	if err != nil {
		return nil, fmt.Errorf("read rate limit window: %w", err)
	}

	res := &models.Result{Limit: limit, ResetAt: now.Add(window)}
	if used >= limit {
		if oldest.Valid {
			res.ResetAt = oldest.Time.Add(window)
		}
		res.RetryAfter = models.RetryAfterSeconds(false, res.ResetAt, now)
		return res, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_limit_events (key, occurred_at, cost, window_seconds)
		VALUES ($1, $2, 1, $3)
	`, key, now, int(window.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("record rate limit event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rate limit tx: %w", err)
	}

	res.Allowed = true
	res.Remaining = limit - used - 1
	if oldest.Valid {
		res.ResetAt = oldest.Time.Add(window)
	}
	return res, nil
}

// DeleteExpired drops events that have left their own window.
func (s *PostgresBucketStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rate_limit_events
		WHERE occurred_at < $1 - make_interval(secs => window_seconds)
	`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired rate limit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rate limit events: %w", err)
	}
	return int(n), nil
}
