package classifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/evolution"
	"github.com/snow-ghost/eaknn/knn"
	"github.com/snow-ghost/eaknn/monitor"
	"github.com/snow-ghost/eaknn/pkg/cache"
	"github.com/snow-ghost/eaknn/pkg/logging"
	"github.com/snow-ghost/eaknn/pkg/metrics"
	"github.com/snow-ghost/eaknn/pkg/tracing"
	"github.com/snow-ghost/eaknn/policy/refresh"
	"github.com/snow-ghost/eaknn/splitter"
	"github.com/snow-ghost/eaknn/window"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// ErrEmptyWindow is returned by Refresh when there is nothing to learn from.
var ErrEmptyWindow = errors.New("window is empty")

// Classifier is a stream classifier: a window of recent examples, weights
// for the k-NN distance found by evolutionary search, and a freshness
// policy deciding when that search runs again.
//
// Train and Predict are serialized; a search triggered by Predict runs to
// completion before the votes are returned.
type Classifier struct {
	mu sync.Mutex

	cfg       Config
	buffer    *window.Buffer
	partition core.PartitionPolicy
	learner   core.Learner
	engine    *evolution.Engine
	cache     *cache.FitnessCache
	freshness *refresh.Policy
	logger    *logging.Logger
	metrics   *metrics.PrometheusMetrics
	tracer    *tracing.Tracer

	dim        int
	maxClass   int
	best       *evolution.Individual
	population evolution.Population
	last       *evolution.Result

	trained     int64
	predictions int64
	refreshes   int64
}

type options struct {
	logger    *zap.Logger
	metrics   *metrics.PrometheusMetrics
	tracer    *tracing.Tracer
	observers []evolution.Observer
	rng       *rand.Rand
}

// Option configures a Classifier.
type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

func WithMetrics(m *metrics.PrometheusMetrics) Option { return func(o *options) { o.metrics = m } }

func WithTracer(t *tracing.Tracer) Option { return func(o *options) { o.tracer = t } }

// WithObserver adds a generation observer to every search.
func WithObserver(obs evolution.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithRand sets the random source shared by partitioning and search. It
// takes precedence over Config.Seed.
func WithRand(rng *rand.Rand) Option { return func(o *options) { o.rng = rng } }

// New validates cfg and builds a classifier with an empty window.
func New(cfg Config, opts ...Option) (*Classifier, error) {
	if err := core.Validate(cfg); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		o.rng = rand.New(rand.NewSource(seed))
	}
	if o.tracer == nil {
		o.tracer = tracing.FromProvider(otel.GetTracerProvider(), "github.com/snow-ghost/eaknn/classifier")
	}
	logger := logging.New(o.logger).Named("classifier")

	buffer, err := window.New(cfg.Limit)
	if err != nil {
		return nil, err
	}
	partition, err := newPartition(cfg, o.rng)
	if err != nil {
		return nil, err
	}
	fitnessCache, err := cache.NewFitnessCache(&cache.CacheConfig{MaxSize: cfg.CacheSize})
	if err != nil {
		return nil, err
	}
	freshness, err := refresh.New(cfg.FreshnessThreshold, cfg.RefreshTimeout)
	if err != nil {
		return nil, err
	}

	observers := []evolution.Observer{monitor.NewLogObserver(logger)}
	if o.metrics != nil {
		observers = append(observers, monitor.NewMetricsObserver(o.metrics))
	}
	observers = append(observers, o.observers...)

	engine, err := evolution.New(cfg.Config,
		evolution.WithRand(o.rng),
		evolution.WithCache(fitnessCache),
		evolution.WithTracer(o.tracer.Tracer()),
		evolution.WithObserver(monitor.Multi(observers...)),
	)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		cfg:       cfg,
		buffer:    buffer,
		partition: partition,
		learner:   knn.NewLearner(cfg.K),
		engine:    engine,
		cache:     fitnessCache,
		freshness: freshness,
		logger:    logger,
		metrics:   o.metrics,
		tracer:    o.tracer,
		dim:       -1,
		maxClass:  -1,
	}, nil
}

func newPartition(cfg Config, rng *rand.Rand) (core.PartitionPolicy, error) {
	switch cfg.Partition {
	case PartitionStratified:
		return splitter.NewStratified(splitter.StratifiedConfig{
			Limit:             cfg.Limit,
			Ratio:             cfg.ratio(),
			Approximate:       cfg.Approximate,
			ApproximationRate: cfg.ApproximationRate,
		}, rng)
	default:
		return splitter.NewRatio(cfg.ratio(), rng)
	}
}

// Train absorbs a labeled example. The first example fixes the dimension;
// later examples must match it.
func (c *Classifier) Train(e core.Example) error {
	if e.Class < 0 {
		return fmt.Errorf("%w: class %d", core.ErrInvalidClass, e.Class)
	}
	if err := core.CheckFinite(e.Attributes); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dim >= 0 && e.Dim() != c.dim {
		return fmt.Errorf("%w: example has %d attributes, want %d", core.ErrDimensionMismatch, e.Dim(), c.dim)
	}
	if c.dim < 0 {
		c.dim = e.Dim()
	}
	if e.Class > c.maxClass {
		c.maxClass = e.Class
	}

	e = e.Clone()
	c.buffer.Add(e)
	c.partition.Add(e)
	since := c.freshness.Observe()
	c.trained++

	if c.metrics != nil {
		c.metrics.RecordTrain(c.buffer.Len(), since)
	}
	return nil
}

// Predict returns one vote per known class for attrs, searching new weights
// first when the current ones are stale. With an empty window, attributes
// of the wrong dimension or non-finite attributes the votes are all zero.
func (c *Classifier) Predict(ctx context.Context, attrs []float64) core.Votes {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.predictions++
	if c.metrics != nil {
		c.metrics.RecordPrediction()
	}

	numClasses := max(1, c.maxClass+1)
	if c.buffer.Len() == 0 || len(attrs) != c.dim || core.CheckFinite(attrs) != nil {
		return make(core.Votes, numClasses)
	}

	if c.freshness.Due(c.best != nil) {
		if err := c.refresh(ctx); err != nil {
			c.logger.WithTrace(ctx).Warn("Weight search failed, keeping previous weights", "error", err)
		}
	}

	weights := core.Ones(c.dim)
	if c.best != nil {
		weights = c.best.Weights
	}
	return c.learner.Fit(c.buffer.Snapshot(), weights).Votes(attrs, numClasses)
}

// Refresh searches new weights now, regardless of freshness.
func (c *Classifier) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh(ctx)
}

func (c *Classifier) refresh(ctx context.Context) error {
	if c.buffer.Len() == 0 {
		return ErrEmptyWindow
	}

	ctx, span := c.tracer.StartRefreshSpan(ctx, c.buffer.Len(), c.freshness.Since(), len(c.population) > 0)
	defer span.End()
	ctx, cancel := c.freshness.Bound(ctx)
	defer cancel()

	views := c.partition.Partition(c.buffer.Snapshot())
	c.cache.Invalidate()

	res, err := c.engine.Run(ctx, c.dim, knn.LearnerFitness(c.learner, views), c.population)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return fmt.Errorf("search weights: %w", err)
	}

	best := res.Best
	c.best = &best
	c.population = res.Population
	c.last = res
	c.refreshes++
	c.freshness.Reset()

	tracing.RecordSpanFitness(span, res.Best.Fitness, res.Generations, string(res.Reason))
	tracing.RecordSpanDuration(span, res.Duration)
	tracing.RecordSpanSuccess(span)
	if c.metrics != nil {
		c.metrics.RecordRefresh(string(res.Reason), res.Duration, res.Best.Fitness, res.Evaluations, res.CacheHits)
	}
	c.logger.LogRefresh(ctx, string(res.Reason), res.Generations, res.Best.Fitness, res.Evaluations, res.WarmStarted, res.Duration)
	return nil
}

// Best returns the weights in use, if a search has completed.
func (c *Classifier) Best() (core.WeightVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.best == nil {
		return nil, false
	}
	return c.best.Weights.Clone(), true
}

// Population returns the final population of the last search.
func (c *Classifier) Population() evolution.Population {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.population.Clone()
}

// Stats is a snapshot of the classifier state.
type Stats struct {
	Trained     int64
	Predictions int64
	Refreshes   int64
	Staleness   int64
	WindowSize  int
	Evictions   int64
	Dimension   int
	Classes     int

	HasModel        bool
	BestFitness     float64
	LastGenerations int
	LastReason      evolution.StopReason
	LastDuration    time.Duration
	LastWarmStart   bool
	Cache           cache.CacheStats
}

func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Trained:     c.trained,
		Predictions: c.predictions,
		Refreshes:   c.refreshes,
		Staleness:   c.freshness.Since(),
		WindowSize:  c.buffer.Len(),
		Evictions:   c.buffer.Evictions(),
		Dimension:   c.dim,
		Classes:     c.maxClass + 1,
		HasModel:    c.best != nil,
		Cache:       c.cache.Stats(),
	}
	if c.best != nil {
		s.BestFitness = c.best.Fitness
	}
	if c.last != nil {
		s.LastGenerations = c.last.Generations
		s.LastReason = c.last.Reason
		s.LastDuration = c.last.Duration
		s.LastWarmStart = c.last.WarmStarted
	}
	return s
}

// Config returns the classifier parameters.
func (c *Classifier) Config() Config { return c.cfg }

// Reset forgets every example, the weights and the retained population.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer.Reset()
	c.partition.Reset()
	c.cache.Invalidate()
	c.freshness.Reset()
	c.dim, c.maxClass = -1, -1
	c.best, c.population, c.last = nil, nil, nil
	c.trained, c.predictions, c.refreshes = 0, 0, 0
}
