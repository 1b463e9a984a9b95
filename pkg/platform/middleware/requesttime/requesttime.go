// Package requesttime pins a single "now" per HTTP request so expiry checks,
// task timestamps and audit logs within one request agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"fitgate/pkg/requestcontext"
)

// Middleware captures the clock once at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
