package httputil

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fitgate/pkg/domain-errors"
)

type registerRequest struct {
	Name string `json:"name"`
}

func (r *registerRequest) Normalize() { r.Name = strings.TrimSpace(r.Name) }

func (r *registerRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestDecodeJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("decodes and normalizes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  coach bot "}`))
		w := httptest.NewRecorder()
		got, ok := DecodeJSON[registerRequest](w, req, logger)
		require.True(t, ok)
		assert.Equal(t, "coach bot", got.Name)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{nope`))
		w := httptest.NewRecorder()
		_, ok := DecodeJSON[registerRequest](w, req, logger)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"bad_request"`)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","admin":true}`))
		w := httptest.NewRecorder()
		_, ok := DecodeJSON[registerRequest](w, req, logger)
		assert.False(t, ok)
	})

	t.Run("validation failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"   "}`))
		w := httptest.NewRecorder()
		_, ok := DecodeJSON[registerRequest](w, req, logger)
		assert.False(t, ok)
		assert.Contains(t, w.Body.String(), `"validation_error"`)
	})
}

type retryErr struct{ error }

func (retryErr) RetryAfterSeconds() int { return 12 }

func (e retryErr) Unwrap() error { return e.error }

func TestWriteError(t *testing.T) {
	t.Run("internal errors hide their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection reset"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
	})

	t.Run("auth failures set WWW-Authenticate", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeTokenRevoked, "token revoked"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Bearer error="token_revoked"`, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("suspension is forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeTenantSuspended, "tenant suspended"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rate limits carry a retry hint", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, retryErr{dErrors.New(dErrors.CodeRateLimited, "slow down")})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "12", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), `"retry_after_seconds":12`)
	})

	t.Run("state mismatch surfaces as invalid_grant", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeStateMismatch, "unknown state"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"invalid_grant"`)
	})
}
