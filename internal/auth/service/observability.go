package service

import (
	"context"
	"time"

	"fitgate/pkg/requestcontext"
)

// Observability helpers for logging and metrics.

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) authFailure(ctx context.Context, reason string, isError bool, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", "auth.failed", "reason", reason, "log_type", "standard")
	if isError {
		s.logger.ErrorContext(ctx, "auth.failed", args...)
	} else {
		s.logger.WarnContext(ctx, "auth.failed", args...)
	}
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures(reason)
	}
}

func (s *Service) incrementTokensIssued(grant string) {
	if s.metrics != nil {
		s.metrics.IncrementTokensIssued(grant)
	}
}

func (s *Service) observeAuthorizeDuration(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAuthorizeDuration(float64(time.Since(start).Milliseconds()))
	}
}

func (s *Service) observeTokenDuration(grant string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTokenDuration(grant, float64(time.Since(start).Milliseconds()))
	}
}
