package admin

import (
	"context"
	"log/slog"
	"net/http"

	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
	"fitgate/pkg/secrets"
)

const (
	TokenHeader   = "X-Admin-Token"
	ActorIDHeader = "X-Admin-Actor-ID"
)

type (
	contextKeyAdminActorID struct{}
	contextKeyAdmin        struct{}
)

// ContextKeyAdminActorID is exported for use in handlers and tests.
var ContextKeyAdminActorID = contextKeyAdminActorID{}

// GetAdminActorID returns the operator named by X-Admin-Actor-ID, if any.
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(ContextKeyAdminActorID).(string); ok {
		return actorID
	}
	return ""
}

// IsAdminRequest reports whether the request passed RequireAdminToken.
func IsAdminRequest(ctx context.Context) bool {
	ok, _ := ctx.Value(contextKeyAdmin{}).(bool)
	return ok
}

// RequireAdminToken guards the operator API (tenant lifecycle, tool policy).
// An empty expected token disables the API entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(TokenHeader)
			if expectedToken == "" || token == "" || !secrets.Equal(token, expectedToken) {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			ctx = context.WithValue(ctx, contextKeyAdmin{}, true)
			if actorID := r.Header.Get(ActorIDHeader); actorID != "" {
				ctx = context.WithValue(ctx, ContextKeyAdminActorID, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
