// Package tracing wraps OpenTelemetry spans around index operations.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans emitted by this module.
const InstrumentationName = "github.com/23skdu/knngraph"

// Tracer starts spans for one index.
type Tracer struct {
	tracer oteltrace.Tracer
	attrs  []attribute.KeyValue
}

// New returns a Tracer from tp, or from the global provider when tp is nil.
// Every span it starts carries the backend and metric attributes.
func New(tp oteltrace.TracerProvider, backend, metric string) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer: tp.Tracer(InstrumentationName),
		attrs: []attribute.KeyValue{
			attribute.String("knn.backend", backend),
			attribute.String("knn.metric", metric),
		},
	}
}

// Span is a running operation span. A nil *Span is a no-op.
type Span struct {
	span oteltrace.Span
}

// Start opens a span named "knn.<op>".
func (t *Tracer) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	if t == nil {
		return ctx, nil
	}
	all := make([]attribute.KeyValue, 0, len(t.attrs)+len(attrs))
	all = append(all, t.attrs...)
	all = append(all, attrs...)
	ctx, span := t.tracer.Start(ctx, "knn."+op, oteltrace.WithAttributes(all...))
	return ctx, &Span{span: span}
}

func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s != nil {
		s.span.SetAttributes(attrs...)
	}
}

// End closes the span, marking it failed when err is non-nil.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// TraceID returns the span's trace ID, or "" when it has none.
func (s *Span) TraceID() string {
	if s == nil || !s.span.SpanContext().IsValid() {
		return ""
	}
	return s.span.SpanContext().TraceID().String()
}
