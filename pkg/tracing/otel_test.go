package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_NoopWithoutEndpoint(t *testing.T) {
	tr, err := NewTracer(Config{})
	require.NoError(t, err)

	ctx, span := tr.StartSpan(context.Background(), "noop")
	span.End()
	assert.Empty(t, GetTraceID(ctx))
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestRefreshSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := FromProvider(tp, "test")

	ctx, span := tr.StartRefreshSpan(context.Background(), 100, 51, true)
	assert.NotEmpty(t, GetTraceID(ctx))
	RecordSpanFitness(span, 0.9, 4, "steady-fitness")
	RecordSpanDuration(span, 5*time.Millisecond)
	RecordSpanSuccess(span)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "classifier.refresh", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int("classifier.window_size", 100))
	assert.Contains(t, ended[0].Attributes(), attribute.String("search.stop_reason", "steady-fitness"))
}

func TestRecordSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := FromProvider(tp, "test")

	_, span := tr.StartEvaluationSpan(context.Background(), "clusters")
	RecordSpanError(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
}
