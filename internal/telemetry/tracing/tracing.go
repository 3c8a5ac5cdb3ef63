// Package tracing provides a narrow Tracer/Span seam over OpenTelemetry,
// with a no-op Tracer for components run without a collector. No package in
// this repository starts spans through it: fetch, navigation steps, the
// bronze write, and the result publish are not traced.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around suspension points.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is a single in-flight trace span.
type Span interface {
	SetAttribute(key string, value string)
	RecordError(err error)
	End()
}

// NewTracerProvider builds an SDK tracer provider; exporter may be nil for a
// provider that only ever drops spans (tests, local runs without a
// collector configured).
func NewTracerProvider(serviceName string, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

type otelTracer struct {
	tracer trace.Tracer
}

// FromProvider adapts an otel TracerProvider's named tracer to this
// package's narrower Tracer seam.
func FromProvider(tp trace.TracerProvider, name string) Tracer {
	return otelTracer{tracer: tp.Tracer(name)}
}

func (t otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}

func (s otelSpan) End() { s.span.End() }

// Noop returns a Tracer whose spans do nothing, for components run without
// tracing configured.
func Noop() Tracer { return noopTracer{} }

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, string) {}
func (noopSpan) RecordError(error)           {}
func (noopSpan) End()                        {}

// GlobalProvider installs tp as the process-wide otel default, matching how
// most OTel-instrumented libraries discover a provider implicitly.
func GlobalProvider(tp trace.TracerProvider) { otel.SetTracerProvider(tp) }
