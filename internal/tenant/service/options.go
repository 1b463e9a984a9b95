package service

import (
	"log/slog"
)

type serviceConfig struct {
	logger    *slog.Logger
	listeners []ChangeListener
}

// Option configures a Service.
type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// WithChangeListener registers fn to run after a tenant's policy or status changes.
func WithChangeListener(fn ChangeListener) Option {
	return func(c *serviceConfig) {
		c.listeners = append(c.listeners, fn)
	}
}
