package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitgate/internal/platform/health"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/middleware/admin"
	authmw "fitgate/pkg/platform/middleware/auth"
	"fitgate/pkg/platform/middleware/request"
	"fitgate/pkg/requestcontext"
)

type stubResolver struct {
	tenantID id.TenantID
}

func (s stubResolver) Resolve(_ context.Context, cred authmw.Credential) (id.AuthContext, error) {
	if cred.Token() != "good" {
		return id.AuthContext{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return id.AuthContext{TenantID: s.tenantID, PrincipalID: uuid.NewString(), PrincipalKind: id.PrincipalUser}, nil
}

// stubRoutes mounts one marker route per group.
type stubRoutes struct {
	name string
}

func (s stubRoutes) Register(r chi.Router) {
	r.Get("/public/"+s.name, marker(s.name))
	r.Post("/public/"+s.name, marker(s.name))
	r.Get("/public/"+s.name+"/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

func (s stubRoutes) RegisterAuthenticated(r chi.Router) {
	r.Get("/private/"+s.name, func(w http.ResponseWriter, r *http.Request) {
		auth, ok := requestcontext.Auth(r.Context())
		if !ok || auth.TenantID.IsNil() {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		marker(s.name)(w, r)
	})
}

func (s stubRoutes) RegisterAdmin(r chi.Router) {
	r.Get("/admin/"+s.name, marker(s.name))
}

func (s stubRoutes) HandleRegisterClient(w http.ResponseWriter, r *http.Request) {
	marker("register")(w, r)
}

func marker(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, name)
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Auth:         stubRoutes{name: "auth"},
		AgentCard:    stubRoutes{name: "card"},
		Tenants:      stubRoutes{name: "tenants"},
		Providers:    stubRoutes{name: "providers"},
		Health:       health.New("test"),
		MCP:          marker("mcp"),
		A2A:          marker("a2a"),
		Resolver:     stubResolver{tenantID: id.TenantID(uuid.New())},
		Gatherer:     reg,
		Metrics:      request.NewMetrics(reg),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxBodyBytes: 1 << 10,
		AdminToken:   "operator-secret",
	})
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProbesAndMetricsArePublic(t *testing.T) {
	h := newTestRouter(t)

	w := serve(h, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestRouter(t)
	w := serve(h, http.MethodGet, "/public/auth", "", map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "auth", w.Body.String())
}

func TestJSONRPCEndpointsRequireAuth(t *testing.T) {
	h := newTestRouter(t)
	for _, path := range []string{"/mcp", "/a2a"} {
		w := serve(h, http.MethodPost, path, `{}`, map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

		w = serve(h, http.MethodPost, path, `{}`, map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer good",
		})
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, strings.TrimPrefix(path, "/"), w.Body.String())
	}
}

func TestAuthenticatedGroup(t *testing.T) {
	h := newTestRouter(t)

	w := serve(h, http.MethodGet, "/private/card", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(h, http.MethodGet, "/private/card", "", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(h, http.MethodPost, "/oauth2/register", `{}`, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer good",
	})
	assert.Equal(t, "register", w.Body.String())
}

func TestAdminRoutesNeedOperatorToken(t *testing.T) {
	h := newTestRouter(t)

	w := serve(h, http.MethodGet, "/admin/tenants", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(h, http.MethodGet, "/admin/tenants", "", map[string]string{admin.TokenHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(h, http.MethodGet, "/admin/tenants", "", map[string]string{admin.TokenHeader: "operator-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnsupportedContentTypeIsRejected(t *testing.T) {
	h := newTestRouter(t)
	w := serve(h, http.MethodPost, "/public/auth", "hello", map[string]string{"Content-Type": "text/plain"})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	h := newTestRouter(t)
	w := serve(h, http.MethodGet, "/public/auth/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}
