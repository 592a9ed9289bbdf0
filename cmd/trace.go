// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	octrace "go.opencensus.io/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/luthersystems/varobj/varobj"
)

// newTracer returns the span backend named by backend. Finished spans are
// logged at debug level.
func newTracer(backend string, log *logrus.Logger) (varobj.Tracer, func(context.Context) error, error) {
	switch backend {
	case "", "none":
		return varobj.NopTracer(), func(context.Context) error { return nil }, nil
	case "otel":
		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithSyncer(&otelLogExporter{log: log}),
		)
		return varobj.NewOpenTelemetryTracer(provider), provider.Shutdown, nil
	case "opencensus":
		exp := &ocLogExporter{log: log}
		octrace.RegisterExporter(exp)
		octrace.ApplyConfig(octrace.Config{DefaultSampler: octrace.AlwaysSample()})
		return varobj.NewOpenCensusTracer(), func(context.Context) error {
			octrace.UnregisterExporter(exp)
			return nil
		}, nil
	}
	return nil, nil, fmt.Errorf("trace.backend: unknown backend %q", backend)
}

type otelLogExporter struct {
	log *logrus.Logger
}

var _ sdktrace.SpanExporter = (*otelLogExporter)(nil)

func (e *otelLogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := logrus.Fields{
			"span":     span.Name(),
			"duration": span.EndTime().Sub(span.StartTime()),
		}
		for _, kv := range span.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		e.log.WithFields(fields).Debug("span")
	}
	return nil
}

func (e *otelLogExporter) Shutdown(ctx context.Context) error { return nil }

type ocLogExporter struct {
	log *logrus.Logger
}

func (e *ocLogExporter) ExportSpan(s *octrace.SpanData) {
	fields := logrus.Fields{
		"span":     s.Name,
		"duration": s.EndTime.Sub(s.StartTime),
	}
	for k, v := range s.Attributes {
		fields[k] = v
	}
	e.log.WithFields(fields).Debug("span")
}
