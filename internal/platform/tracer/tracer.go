// Package tracer is a thin OpenTelemetry adapter. Callers open a span and
// close it with the operation's error so failed calls are marked in traces.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Tracer struct {
	tracer trace.Tracer
}

// New returns a tracer from the global provider. Without an SDK installed
// the global provider is a no-op.
func New(instrumentation string) *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentation)}
}

// NewWithProvider is used by tests that install an in-memory provider.
func NewWithProvider(tp trace.TracerProvider, instrumentation string) *Tracer {
	return &Tracer{tracer: tp.Tracer(instrumentation)}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	if t == nil || t.tracer == nil {
		return ctx, Span{span: trace.SpanFromContext(ctx)}
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, Span{span: span}
}

func (s Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// End completes the span, recording err when non-nil.
func (s Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}
