package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
)

// Cookie and header names for browser sessions.
const (
	SessionCookieName = "fitgate_session"
	CSRFCookieName    = "fitgate_csrf"
	CSRFHeaderName    = "X-CSRF-Token"
)

// Credential is what a caller presented: a bearer token, or a browser
// session cookie with its double-submit CSRF pair.
type Credential struct {
	Bearer     string
	Session    string
	CSRFHeader string
	CSRFCookie string
	// StateChanging marks unsafe HTTP methods; session callers must then
	// present a matching CSRF header.
	StateChanging bool
	// EnforceSuspension refuses the call outright when the tenant is
	// suspended. Endpoints that decide per operation leave it unset and
	// read AuthContext.TenantSuspended instead.
	EnforceSuspension bool
}

// Token returns the presented access token, preferring the bearer header.
func (c Credential) Token() string {
	if c.Bearer != "" {
		return c.Bearer
	}
	return c.Session
}

// IsSession reports whether the token came from the session cookie.
func (c Credential) IsSession() bool {
	return c.Bearer == "" && c.Session != ""
}

// Resolver turns a credential into the caller's identity.
type Resolver interface {
	Resolve(ctx context.Context, cred Credential) (id.AuthContext, error)
}

type config struct {
	deferSuspension bool
}

type Option func(*config)

// DeferSuspension leaves suspended-tenant handling to the endpoint, which
// sees AuthContext.TenantSuspended.
func DeferSuspension() Option {
	return func(c *config) {
		c.deferSuspension = true
	}
}

// CredentialFromRequest extracts the bearer token or session cookie.
func CredentialFromRequest(r *http.Request) Credential {
	cred := Credential{
		StateChanging: !isSafeMethod(r.Method),
		CSRFHeader:    r.Header.Get(CSRFHeaderName),
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			cred.Bearer = strings.TrimSpace(token)
		}
		return cred
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		cred.Session = c.Value
	}
	if c, err := r.Cookie(CSRFCookieName); err == nil {
		cred.CSRFCookie = c.Value
	}
	return cred
}

// RequireAuth resolves the caller before the handler runs and stores the
// AuthContext in the request context. Failures are written as OAuth-style
// errors with a WWW-Authenticate header and never reach the handler.
func RequireAuth(resolver Resolver, logger *slog.Logger, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			cred := CredentialFromRequest(r)
			cred.EnforceSuspension = cred.StateChanging && !cfg.deferSuspension

			if cred.Token() == "" {
				logger.WarnContext(ctx, "unauthorized access - missing credential",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token or session"))
				return
			}

			authCtx, err := resolver.Resolve(ctx, cred)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				if dErrors.HasCode(err, dErrors.CodeTenantSuspended) {
					w.Header().Set("WWW-Authenticate", `Bearer error="tenant_suspended"`)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAuth(ctx, authCtx)))
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
