// Copyright © 2024 The ELPS authors

package varobj

import (
	"context"

	"go.opencensus.io/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer records one span per engine command. The returned function ends
// the span and receives the number of changes the command reported.
type Tracer interface {
	StartSpan(ctx context.Context, command, name string) (context.Context, func(changes int))
}

const (
	attrVarName = attribute.Key("varobj.name")
	attrChanges = attribute.Key("varobj.changes")
)

type nopTracer struct{}

// NopTracer records nothing.
func NopTracer() Tracer { return nopTracer{} }

func (nopTracer) StartSpan(ctx context.Context, _, _ string) (context.Context, func(int)) {
	return ctx, func(int) {}
}

type otelTracer struct {
	provider oteltrace.TracerProvider
	name     string
}

// NewOpenTelemetryTracer records spans with provider, or the global
// provider when provider is nil.
func NewOpenTelemetryTracer(provider oteltrace.TracerProvider) Tracer {
	return &otelTracer{provider: provider, name: "varobj"}
}

func (t *otelTracer) StartSpan(ctx context.Context, command, name string) (context.Context, func(int)) {
	provider := t.provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	ctx, span := provider.Tracer(t.name).Start(ctx, command)
	span.SetAttributes(
		semconv.CodeFunction(command),
		attrVarName.String(name),
	)
	return ctx, func(changes int) {
		span.SetAttributes(attrChanges.Int(changes))
		span.End()
	}
}

type ocTracer struct{}

// NewOpenCensusTracer records spans with the opencensus trace package.
func NewOpenCensusTracer() Tracer { return ocTracer{} }

func (ocTracer) StartSpan(ctx context.Context, command, name string) (context.Context, func(int)) {
	ctx, span := trace.StartSpan(ctx, command)
	span.AddAttributes(trace.StringAttribute(string(attrVarName), name))
	return ctx, func(changes int) {
		span.AddAttributes(trace.Int64Attribute(string(attrChanges), int64(changes)))
		span.End()
	}
}
