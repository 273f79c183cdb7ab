package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerProvider wraps an OpenTelemetry SDK provider writing spans as
// newline-delimited JSON to an arbitrary writer. There is no
// always-on collector in a one-shot CLI: tracing is opt-in via
// --trace-output and scoped to a single command invocation.
type TracerProvider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewTracerProvider builds a TracerProvider emitting to w. If w is
// nil, tracing is a no-op: StartCommand still returns a usable span,
// it simply records nothing.
func NewTracerProvider(w io.Writer) (*TracerProvider, error) {
	if w == nil {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer("policyproof")}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("build stdout trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName("policyproof"),
	))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp, tracer: tp.Tracer("policyproof")}, nil
}

// StartCommand starts a span named after the invoked CLI command.
func (p *TracerProvider) StartCommand(ctx context.Context, command string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, command, trace.WithAttributes(attribute.String("policyproof.command", command)))
}

// Shutdown flushes and releases the underlying SDK provider, if any.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
