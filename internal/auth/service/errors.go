package service

import (
	"context"
	"errors"

	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
)

// grantFlow selects the public error code and messages for a failed
// credential consumption.
type grantFlow int

const (
	flowAuthorizationCode grantFlow = iota
	flowRefresh
)

type tokenErrorMapping struct {
	sentinel   error
	codeMsg    string
	refreshMsg string
	logReason  string
}

// tokenErrorMappings is checked in order; first match wins.
var tokenErrorMappings = []tokenErrorMapping{
	{sentinel.ErrNotFound, "unknown or mismatched state", "invalid refresh token", "not_found"},
	{sentinel.ErrExpired, "authorization request expired", "refresh token expired", "expired"},
	{sentinel.ErrAlreadyUsed, "authorization request already used", "refresh token already used", "already_used"},
	{sentinel.ErrInvalidInput, "authorization request does not match", "invalid refresh token", "mismatch"},
}

func (f grantFlow) code() dErrors.Code {
	if f == flowRefresh {
		return dErrors.CodeInvalidGrant
	}
	return dErrors.CodeStateMismatch
}

// handleConsumeError translates a store failure into the grant's public error.
func (s *Service) handleConsumeError(ctx context.Context, err error, clientID string, flow grantFlow) error {
	attrs := []any{"client_id", clientID}

	var de *dErrors.Error
	if errors.As(err, &de) {
		s.authFailure(ctx, string(de.Code), false, attrs...)
		return err
	}

	for _, m := range tokenErrorMappings {
		if errors.Is(err, m.sentinel) {
			msg := m.codeMsg
			if flow == flowRefresh {
				msg = m.refreshMsg
				if m.sentinel == sentinel.ErrAlreadyUsed && s.metrics != nil {
					s.metrics.IncrementRefreshReuse()
				}
			}
			s.authFailure(ctx, m.logReason, false, attrs...)
			return dErrors.New(flow.code(), msg)
		}
	}

	s.authFailure(ctx, "internal_error", true, append(attrs, "error", err)...)
	return dErrors.Wrap(err, dErrors.CodeInternal, "token handling failed")
}
