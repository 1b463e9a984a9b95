package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

// The invariant under test: a wrong or missing token never reaches the handler.
type AdminMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AdminMiddlewareSuite) serve(expected, presented, actor string) (called bool, ctx context.Context, w *httptest.ResponseRecorder) {
	handler := RequireAdminToken(expected, s.logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			ctx = r.Context()
			w.WriteHeader(http.StatusOK)
		}),
	)
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants", nil)
	if presented != "" {
		req.Header.Set(TokenHeader, presented)
	}
	if actor != "" {
		req.Header.Set(ActorIDHeader, actor)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return called, ctx, w
}

func (s *AdminMiddlewareSuite) TestTokenValidation() {
	s.Run("correct token passes to next handler", func() {
		called, ctx, w := s.serve("secret-admin-token", "secret-admin-token", "")
		s.True(called)
		s.True(IsAdminRequest(ctx))
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("wrong token returns 401 and blocks handler", func() {
		called, _, w := s.serve("secret-admin-token", "wrong-token", "")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.Contains(w.Body.String(), "invalid_token")
	})

	s.Run("missing token returns 401", func() {
		called, _, w := s.serve("secret-admin-token", "", "")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("unconfigured token disables the api", func() {
		called, _, w := s.serve("", "", "")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *AdminMiddlewareSuite) TestActorIDContextInjection() {
	_, ctx, _ := s.serve("secret-admin-token", "secret-admin-token", "ops-7")
	s.Equal("ops-7", GetAdminActorID(ctx))

	_, ctx, _ = s.serve("secret-admin-token", "secret-admin-token", "")
	s.Empty(GetAdminActorID(ctx))
}

func (s *AdminMiddlewareSuite) TestGetAdminActorID() {
	s.Empty(GetAdminActorID(context.Background()))
	s.Empty(GetAdminActorID(context.WithValue(context.Background(), ContextKeyAdminActorID, 12345)))
	s.False(IsAdminRequest(context.Background()))
}
