package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Expirer is any credential store that can drop its expired records.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Target names a store so results and logs can say what was cleaned.
type Target struct {
	Name  string
	Store Expirer
}

// CleanupResult maps target name to deleted record count.
type CleanupResult map[string]int

// CleanupService periodically sweeps stores that have no native expiry:
// authorization requests, refresh tokens, revocations, rate limit windows
// and pending provider connections.
type CleanupService struct {
	targets  []Target
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(targets []Target, opts ...CleanupOption) (*CleanupService, error) {
	for _, t := range targets {
		if t.Store == nil || t.Name == "" {
			return nil, fmt.Errorf("cleanup target %q has no store", t.Name)
		}
	}
	svc := &CleanupService{
		targets:  targets,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
			}
			for name, n := range res {
				if n > 0 {
					s.logger.InfoContext(ctx, "expired records removed", "target", name, "deleted", n)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce cleans every target once. A failing target does not stop the
// others; errors are joined.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	now := s.now()
	res := make(CleanupResult, len(s.targets))
	var errs []error
	for _, t := range s.targets {
		n, err := t.Store.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete expired %s: %w", t.Name, err))
			continue
		}
		res[t.Name] = n
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
