// Package requestcontext carries request-scoped metadata set by the HTTP
// middleware chain and read by handlers, services and log statements.
package requestcontext

import (
	"context"
	"time"

	id "fitgate/pkg/domain"
)

type (
	requestIDKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	deviceLabelKey struct{}
	requestTimeKey struct{}
	authKey        struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithClientMetadata stores the resolved client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

// WithDeviceLabel stores a coarse "browser/os/platform" label derived from the User-Agent.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, deviceLabelKey{}, label)
}

func DeviceLabel(ctx context.Context) string {
	v, _ := ctx.Value(deviceLabelKey{}).(string)
	return v
}

// WithTime pins the request-scoped "now". Workers and tests use it to get a
// consistent timestamp across a unit of work.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithAuth attaches the resolved caller.
func WithAuth(ctx context.Context, auth id.AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, auth)
}

// Auth returns the resolved caller and whether one was attached.
func Auth(ctx context.Context) (id.AuthContext, bool) {
	v, ok := ctx.Value(authKey{}).(id.AuthContext)
	return v, ok
}
