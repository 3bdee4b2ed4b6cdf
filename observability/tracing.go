package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name for depforge operations
const TracerName = "github.com/nsoperations/depforge"

// Common attribute keys
const (
	AttrDependency = attribute.Key("depforge.dependency")
	AttrVersion    = attribute.Key("depforge.version")
	AttrOperation  = attribute.Key("depforge.operation")
)

// TracerConfig holds OpenTelemetry tracer configuration
type TracerConfig struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ExporterType is the type of exporter (stdout, none)
	ExporterType string

	// SamplingRate is the trace sampling rate (0.0 to 1.0)
	SamplingRate float64
}

// DefaultTracerConfig returns default tracer configuration
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		ServiceName:    "depforge",
		ServiceVersion: "0.1.0",
		ExporterType:   "none",
		SamplingRate:   1.0,
	}
}

// SetupTracing initializes OpenTelemetry tracing. The returned provider
// must be shut down by the caller.
func SetupTracing(ctx context.Context, config TracerConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
	}

	switch config.ExporterType {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "none", "":
		// No exporter: spans are still created for in-process use.
	default:
		return nil, fmt.Errorf("unknown exporter type: %q", config.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// StartSpan starts a span using the global tracer provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, opts...)
}

// StartResolveSpan starts a span for one resolution run.
func StartResolveSpan(ctx context.Context, dependencyCount int) (context.Context, trace.Span) {
	return StartSpan(ctx, "depforge.resolve",
		trace.WithAttributes(
			attribute.Int("depforge.manifest.dependencies", dependencyCount),
			AttrOperation.String("resolve"),
		),
	)
}

// StartRetrieverSpan starts a span for one retriever lookup.
func StartRetrieverSpan(ctx context.Context, operation, dependency string) (context.Context, trace.Span) {
	return StartSpan(ctx, "depforge.retriever."+operation,
		trace.WithAttributes(
			AttrDependency.String(dependency),
			AttrOperation.String(operation),
		),
	)
}
