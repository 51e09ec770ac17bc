package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics of one classifier process
type PrometheusMetrics struct {
	// Stream metrics
	TrainedTotal     prometheus.Counter
	PredictionsTotal prometheus.Counter
	WindowSize       prometheus.Gauge
	Staleness        prometheus.Gauge

	// Search metrics
	RefreshesTotal   *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	GenerationsTotal prometheus.Counter
	BestFitness      prometheus.Gauge
	MeanFitness      prometheus.Gauge

	// Fitness cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Evaluation metrics
	Accuracy prometheus.Gauge
}

// NewPrometheusMetrics creates the metrics and registers them with reg. A nil
// reg leaves them unregistered, which suits tests and embedded use.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		TrainedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eaknn_trained_examples_total",
				Help: "Total number of labeled examples absorbed",
			},
		),

		PredictionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eaknn_predictions_total",
				Help: "Total number of vote vectors produced",
			},
		),

		WindowSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eaknn_window_size",
				Help: "Number of examples resident in the window",
			},
		),

		Staleness: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eaknn_staleness_examples",
				Help: "Examples absorbed since the last weight search",
			},
		),

		RefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eaknn_refreshes_total",
				Help: "Total number of weight searches by stop reason",
			},
			[]string{"reason"},
		),

		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eaknn_refresh_duration_seconds",
				Help:    "Weight search latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		GenerationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eaknn_generations_total",
				Help: "Total number of generations evaluated",
			},
		),

		BestFitness: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eaknn_best_fitness",
				Help: "Fitness of the weights currently in use",
			},
		),

		MeanFitness: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eaknn_generation_mean_fitness",
				Help: "Mean fitness of the most recent generation",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eaknn_fitness_cache_hits_total",
				Help: "Total number of fitness cache hits",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eaknn_fitness_cache_misses_total",
				Help: "Total number of fitness evaluations computed",
			},
		),

		Accuracy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eaknn_prequential_accuracy",
				Help: "Running test-then-train accuracy",
			},
		),
	}
}

// RecordTrain records an absorbed example
func (m *PrometheusMetrics) RecordTrain(windowSize int, staleness int64) {
	m.TrainedTotal.Inc()
	m.WindowSize.Set(float64(windowSize))
	m.Staleness.Set(float64(staleness))
}

// RecordPrediction records a produced vote vector
func (m *PrometheusMetrics) RecordPrediction() {
	m.PredictionsTotal.Inc()
}

// RecordRefresh records a completed weight search
func (m *PrometheusMetrics) RecordRefresh(reason string, duration time.Duration, fitness float64, evaluations, cacheHits int64) {
	m.RefreshesTotal.WithLabelValues(reason).Inc()
	m.RefreshDuration.Observe(duration.Seconds())
	m.BestFitness.Set(fitness)
	m.Staleness.Set(0)
	if evaluations > 0 {
		m.CacheMissesTotal.Add(float64(evaluations))
	}
	if cacheHits > 0 {
		m.CacheHitsTotal.Add(float64(cacheHits))
	}
}

// RecordGeneration records one evaluated generation
func (m *PrometheusMetrics) RecordGeneration(mean float64) {
	m.GenerationsTotal.Inc()
	m.MeanFitness.Set(mean)
}

// RecordAccuracy records the running prequential accuracy
func (m *PrometheusMetrics) RecordAccuracy(accuracy float64) {
	m.Accuracy.Set(accuracy)
}
