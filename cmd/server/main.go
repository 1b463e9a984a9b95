package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"fitgate/internal/platform/config"
	"fitgate/internal/platform/logger"
)

// main parses flags, builds the gateway and runs it until SIGINT/SIGTERM.
// Construction lives in app.go; storage selection in stores.go.
func main() {
	cfg := config.FromEnv()

	flags := pflag.NewFlagSet("fitgate", pflag.ExitOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flags.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "YAML seed file applied at startup")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	log := logger.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.IsDevSigningKey() {
		if cfg.Environment == "production" {
			return errors.New("JWT_SIGNING_KEY must be set in production")
		}
		log.Warn("using the development JWT signing key")
	}

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	if cfg.SeedFile != "" {
		if err := app.seed(ctx, cfg.SeedFile); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr, "base_url", cfg.BaseURL, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return app.executor.Start(gctx)
	})
	g.Go(func() error {
		return app.cleanup.Start(gctx)
	})
	g.Go(func() error {
		if err := app.cards.Warm(gctx); err != nil {
			log.Warn("agent card warmup failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
