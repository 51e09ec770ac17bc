package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/snow-ghost/eaknn/classifier"
	"github.com/snow-ghost/eaknn/pkg/logging"
	"github.com/snow-ghost/eaknn/pkg/metrics"
	"github.com/snow-ghost/eaknn/pkg/tracing"
	"github.com/snow-ghost/eaknn/testkit"
)

// Manager manages all observability components
type Manager struct {
	registry *prometheus.Registry
	metrics  *metrics.PrometheusMetrics
	tracer   *tracing.Tracer
	logger   *logging.Logger
}

// Config holds observability configuration
type Config struct {
	Logging logging.Config
	Tracing tracing.Config
}

// NewManager creates a new observability manager with its own registry
func NewManager(config Config) (*Manager, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracer, err := tracing.NewTracer(config.Tracing)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(config.Logging)
	if err != nil {
		return nil, err
	}

	return &Manager{
		registry: registry,
		metrics:  metrics.NewPrometheusMetrics(registry),
		tracer:   tracer,
		logger:   logger,
	}, nil
}

// GetMetrics returns the metrics instance
func (m *Manager) GetMetrics() *metrics.PrometheusMetrics {
	return m.metrics
}

// GetTracer returns the tracer instance
func (m *Manager) GetTracer() *tracing.Tracer {
	return m.tracer
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() *logging.Logger {
	return m.logger
}

// MetricsHandler serves the registry in the Prometheus exposition format
func (m *Manager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ClassifierOptions wires logging, metrics and tracing into a classifier
func (m *Manager) ClassifierOptions() []classifier.Option {
	return []classifier.Option{
		classifier.WithLogger(m.logger.GetZap()),
		classifier.WithMetrics(m.metrics),
		classifier.WithTracer(m.tracer),
	}
}

// RunnerOptions wires logging, metrics and tracing into a prequential runner
func (m *Manager) RunnerOptions() []testkit.Option {
	return []testkit.Option{
		testkit.WithLogger(m.logger),
		testkit.WithMetrics(m.metrics),
		testkit.WithTracer(m.tracer),
	}
}

// Shutdown flushes the tracer and the logger
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.tracer.Shutdown(ctx); err != nil {
		return err
	}
	// syncing a terminal fails on some platforms; nothing is lost
	_ = m.logger.Sync()
	return nil
}
