package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracer
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Config holds tracing configuration
type Config struct {
	ServiceName    string `yaml:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version" env:"SERVICE_VERSION"`
	// JaegerEndpoint enables export when set; otherwise spans are dropped.
	JaegerEndpoint string `yaml:"jaeger_endpoint" env:"JAEGER_ENDPOINT" validate:"omitempty,url"`
	Environment    string `yaml:"environment" env:"ENVIRONMENT"`
}

// NewTracer creates a new OpenTelemetry tracer. Without a Jaeger endpoint it
// returns a no-op tracer and leaves the global provider untouched.
func NewTracer(config Config) (*Tracer, error) {
	if config.ServiceName == "" {
		config.ServiceName = "eaknn"
	}
	if config.JaegerEndpoint == "" {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer(config.ServiceName)}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		tracer:   tp.Tracer(config.ServiceName),
		provider: tp,
	}, nil
}

// FromProvider wraps a tracer taken from an existing provider
func FromProvider(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name)}
}

// Tracer returns the underlying OpenTelemetry tracer
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartRefreshSpan starts a span for a weight search triggered by the classifier
func (t *Tracer) StartRefreshSpan(ctx context.Context, windowSize int, staleness int64, warm bool) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.Int("classifier.window_size", windowSize),
		attribute.Int64("classifier.staleness", staleness),
		attribute.Bool("classifier.warm_start", warm),
	}

	return t.StartSpan(ctx, "classifier.refresh", trace.WithAttributes(attrs...))
}

// StartEvaluationSpan starts a span for a prequential evaluation
func (t *Tracer) StartEvaluationSpan(ctx context.Context, stream string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "testkit.prequential", trace.WithAttributes(
		attribute.String("stream.name", stream),
	))
}

// RecordSpanError records an error in a span
func RecordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSpanSuccess records success in a span
func RecordSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// RecordSpanDuration records duration in a span
func RecordSpanDuration(span trace.Span, duration time.Duration) {
	span.SetAttributes(attribute.Float64("duration_ms", float64(duration.Nanoseconds())/1e6))
}

// RecordSpanFitness records the outcome of a weight search in a span
func RecordSpanFitness(span trace.Span, fitness float64, generations int, reason string) {
	span.SetAttributes(
		attribute.Float64("search.best_fitness", fitness),
		attribute.Int("search.generations", generations),
		attribute.String("search.stop_reason", reason),
	)
}

// Shutdown flushes and stops the exporter, if one was started
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTraceID extracts trace ID from context
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
