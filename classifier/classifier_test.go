package classifier

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/evolution"
	"github.com/snow-ghost/eaknn/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.Limit = 100
	cfg.K = 3
	cfg.PopulationSize = 20
	cfg.MaxEpochs = 10
	cfg.Steadiness = 5
	cfg.FreshnessThreshold = 50
	cfg.Seed = 42
	return cfg
}

// clusters returns n examples alternating between class 0 around (0.1, 0.1)
// and class 1 around (0.9, 0.9).
func clusters(rng *rand.Rand, n int) []core.Example {
	centres := [][]float64{{0.1, 0.1}, {0.9, 0.9}}
	out := make([]core.Example, n)
	for i := range out {
		class := i % 2
		c := centres[class]
		out[i] = core.NewExample([]float64{
			c[0] + rng.NormFloat64()*0.03,
			c[1] + rng.NormFloat64()*0.03,
		}, class)
	}
	return out
}

func train(t *testing.T, c *Classifier, examples []core.Example) {
	t.Helper()
	for _, e := range examples {
		require.NoError(t, c.Train(e))
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.K = 0 },
		func(c *Config) { c.Limit = 0 },
		func(c *Config) { c.FreshnessThreshold = 0 },
		func(c *Config) { c.PopulationSize = 0 },
		func(c *Config) { c.Partition = "random" },
		func(c *Config) { c.Ratio = 1 },
		func(c *Config) { c.ApproximationRate = 1.5 },
		func(c *Config) { c.CacheSize = 0 },
		func(c *Config) { c.MutationRate = 2 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := New(cfg)
		assert.ErrorIs(t, err, core.ErrInvalidConfig, "case %d", i)
	}

	_, err := New(DefaultConfig())
	assert.NoError(t, err)
}

func TestPredict_EmptyWindow(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)

	votes := c.Predict(context.Background(), []float64{0.5, 0.5})
	assert.Equal(t, core.Votes{0}, votes)
	assert.Equal(t, int64(0), c.Stats().Refreshes)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrEmptyWindow)
}

func TestTrain_Validation(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Train(core.NewExample([]float64{0.1, 0.2}, -1)), core.ErrInvalidClass)
	require.NoError(t, c.Train(core.NewExample([]float64{0.1, 0.2}, 1)))
	assert.ErrorIs(t, c.Train(core.NewExample([]float64{0.1}, 0)), core.ErrDimensionMismatch)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Trained)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, 2, stats.Classes)

	// wrong dimension degrades to zero votes sized to the known classes
	assert.Equal(t, core.Votes{0, 0}, c.Predict(context.Background(), []float64{0.1, 0.2, 0.3}))
}

func TestTrain_RejectsNonFiniteAttributes(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Train(core.NewExample([]float64{math.NaN(), 0.2}, 0)), core.ErrInvalidAttribute)
	assert.ErrorIs(t, c.Train(core.NewExample([]float64{0.1, math.Inf(1)}, 0)), core.ErrInvalidAttribute)
	assert.Equal(t, int64(0), c.Stats().Trained)
	assert.Equal(t, 0, c.Stats().WindowSize)

	require.NoError(t, c.Train(core.NewExample([]float64{0.1, 0.2}, 1)))
	assert.Equal(t, core.Votes{0, 0}, c.Predict(context.Background(), []float64{math.NaN(), 0.2}))
	assert.Equal(t, int64(0), c.Stats().Refreshes)
}

func TestTrain_CopiesExample(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)

	attrs := []float64{0.1, 0.1}
	require.NoError(t, c.Train(core.Example{Attributes: attrs, Class: 0}))
	attrs[0] = 0.9

	assert.Equal(t, []float64{0.1, 0.1}, c.buffer.Snapshot()[0].Attributes)
}

func TestEndToEnd_TwoClusters(t *testing.T) {
	var generations []int
	m := metrics.NewPrometheusMetrics(nil)
	c, err := New(scenarioConfig(),
		WithMetrics(m),
		WithObserver(evolution.ObserverFunc(func(_ context.Context, g evolution.Generation) {
			generations = append(generations, g.Number)
		})),
	)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	train(t, c, clusters(rng, 100))

	_, ok := c.Best()
	assert.False(t, ok, "no search before the first prediction")

	ctx := context.Background()
	low := c.Predict(ctx, []float64{0.05, 0.05})
	require.Len(t, low, 2)
	assert.Greater(t, low[0], low[1])
	assert.Equal(t, 3.0, low.Total())

	high := c.Predict(ctx, []float64{0.95, 0.95})
	require.Len(t, high, 2)
	assert.Greater(t, high[1], high[0])

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Refreshes, "second prediction reuses the weights")
	assert.Equal(t, int64(0), stats.Staleness)
	assert.True(t, stats.HasModel)
	assert.Equal(t, 1.0, stats.BestFitness)
	assert.LessOrEqual(t, stats.LastGenerations, 10)
	assert.Equal(t, 100, stats.WindowSize)

	best, ok := c.Best()
	require.True(t, ok)
	assert.Len(t, best, 2)
	for _, w := range best {
		assert.True(t, w >= 0 && w <= 1)
	}

	require.NotEmpty(t, generations)
	assert.Equal(t, 0, generations[0])
	assert.Equal(t, float64(len(generations)), testutil.ToFloat64(m.GenerationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues(string(stats.LastReason))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.TrainedTotal))
}

func TestFreshnessThreshold(t *testing.T) {
	cfg := scenarioConfig()
	cfg.FreshnessThreshold = 5
	c, err := New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	ctx := context.Background()
	train(t, c, clusters(rng, 20))
	c.Predict(ctx, []float64{0.1, 0.1})
	require.Equal(t, int64(1), c.Stats().Refreshes)
	first := c.Population()
	require.Len(t, first, 20)

	train(t, c, clusters(rng, 5))
	c.Predict(ctx, []float64{0.1, 0.1})
	assert.Equal(t, int64(1), c.Stats().Refreshes, "count equal to threshold is still fresh")
	assert.Equal(t, int64(5), c.Stats().Staleness)

	train(t, c, clusters(rng, 1))
	c.Predict(ctx, []float64{0.1, 0.1})
	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Refreshes)
	assert.Equal(t, int64(0), stats.Staleness)
	assert.Equal(t, int64(2), stats.Cache.Invalidations, "cache cleared once per search")
}

func TestWarmStartAcrossRefreshes(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)

	train(t, c, clusters(rand.New(rand.NewSource(5)), 30))
	require.NoError(t, c.Refresh(context.Background()))
	assert.False(t, c.Stats().LastWarmStart)
	previous := c.Population()
	prevBest, _ := previous.Best()

	require.NoError(t, c.Refresh(context.Background()))
	stats := c.Stats()
	assert.True(t, stats.LastWarmStart)
	assert.Equal(t, int64(2), stats.Refreshes)
	assert.GreaterOrEqual(t, stats.BestFitness, prevBest.Fitness)
}

func TestRefresh_LogsCompletion(t *testing.T) {
	zcore, logs := observer.New(zapcore.InfoLevel)
	c, err := New(scenarioConfig(), WithLogger(zap.New(zcore)))
	require.NoError(t, err)

	train(t, c, clusters(rand.New(rand.NewSource(9)), 10))
	require.NoError(t, c.Refresh(context.Background()))

	entries := logs.FilterMessage("Weight search completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "classifier", entries[0].LoggerName)
	assert.Contains(t, entries[0].ContextMap(), "best_fitness")
}

func TestStratifiedPartition(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Partition = PartitionStratified
	c, err := New(cfg)
	require.NoError(t, err)

	train(t, c, clusters(rand.New(rand.NewSource(11)), 100))
	votes := c.Predict(context.Background(), []float64{0.95, 0.95})
	assert.Greater(t, votes[1], votes[0])
	assert.Equal(t, 1.0, c.Stats().BestFitness)
}

func TestCanceledRefreshKeepsBestSoFar(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)
	train(t, c, clusters(rand.New(rand.NewSource(13)), 40))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Refresh(ctx))

	stats := c.Stats()
	assert.True(t, stats.HasModel)
	assert.Equal(t, evolution.StopCanceled, stats.LastReason)
	assert.Equal(t, 0, stats.LastGenerations)
}

func TestReset(t *testing.T) {
	c, err := New(scenarioConfig())
	require.NoError(t, err)
	train(t, c, clusters(rand.New(rand.NewSource(17)), 10))
	c.Predict(context.Background(), []float64{0.1, 0.1})

	c.Reset()
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Trained)
	assert.Equal(t, 0, stats.WindowSize)
	assert.False(t, stats.HasModel)
	assert.Empty(t, c.Population())
	assert.Equal(t, core.Votes{0}, c.Predict(context.Background(), []float64{0.1, 0.1}))

	// a new dimension is accepted after reset
	require.NoError(t, c.Train(core.NewExample([]float64{1, 2, 3}, 0)))
}
