package monitor

import (
	"context"

	"github.com/snow-ghost/eaknn/evolution"
	"github.com/snow-ghost/eaknn/pkg/logging"
	"github.com/snow-ghost/eaknn/pkg/metrics"
)

// Multi fans one generation out to several observers, in order. Nil
// observers are skipped.
func Multi(observers ...evolution.Observer) evolution.Observer {
	list := make([]evolution.Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return multi(list)
}

type multi []evolution.Observer

func (m multi) OnGeneration(ctx context.Context, g evolution.Generation) {
	for _, o := range m {
		o.OnGeneration(ctx, g)
	}
}

// LogObserver writes one debug line per generation.
type LogObserver struct {
	logger *logging.Logger
}

func NewLogObserver(logger *logging.Logger) *LogObserver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnGeneration(ctx context.Context, g evolution.Generation) {
	o.logger.LogGeneration(ctx, g.Number, g.Best.Fitness, g.Stats.Mean, g.BestEver.Fitness)
}

// MetricsObserver counts generations and exports the mean fitness.
type MetricsObserver struct {
	metrics *metrics.PrometheusMetrics
}

func NewMetricsObserver(m *metrics.PrometheusMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnGeneration(_ context.Context, g evolution.Generation) {
	o.metrics.RecordGeneration(g.Stats.Mean)
}

// runCounter numbers search runs from 1, starting a new run at generation 0.
type runCounter struct {
	run int
}

func (r *runCounter) observe(g evolution.Generation) int {
	if g.Number == 0 || r.run == 0 {
		r.run++
	}
	return r.run
}
