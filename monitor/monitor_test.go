package monitor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/evolution"
	"github.com/snow-ghost/eaknn/pkg/logging"
	"github.com/snow-ghost/eaknn/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func generation(n int, best float64) evolution.Generation {
	pop := evolution.Population{
		{Weights: core.WeightVector{0.25, 0.5}, Fitness: best},
		{Weights: core.WeightVector{1, 0}, Fitness: best / 2},
	}
	return evolution.Generation{
		Number:      n,
		Best:        pop[0],
		BestEver:    pop[0],
		Stats:       pop.Stats(),
		Population:  pop,
		Evaluations: int64(2 * (n + 1)),
	}
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_Best(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf, CSVBest)
	require.NoError(t, err)

	ctx := context.Background()
	w.OnGeneration(ctx, generation(0, 0.5))
	w.OnGeneration(ctx, generation(1, 0.75))
	w.OnGeneration(ctx, generation(0, 0.8))
	require.NoError(t, w.Close())

	assert.Equal(t, [][]string{
		{"run", "generation", "fitness", "w0", "w1"},
		{"1", "0", "0.5", "0.25", "0.5"},
		{"1", "1", "0.75", "0.25", "0.5"},
		{"2", "0", "0.8", "0.25", "0.5"},
	}, readCSV(t, &buf))
}

func TestCSVWriter_Population(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf, CSVPopulation)
	require.NoError(t, err)

	w.OnGeneration(context.Background(), generation(0, 0.5))
	require.NoError(t, w.Close())

	assert.Equal(t, [][]string{
		{"run", "generation", "index", "fitness", "w0", "w1"},
		{"1", "0", "0", "0.5", "0.25", "0.5"},
		{"1", "0", "1", "0.25", "1", "0"},
	}, readCSV(t, &buf))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCSVWriter_KeepsFirstError(t *testing.T) {
	w, err := NewCSVWriter(failingWriter{}, CSVBest)
	require.NoError(t, err)

	w.OnGeneration(context.Background(), generation(0, 0.5))
	assert.EqualError(t, w.Err(), "disk full")
	assert.EqualError(t, w.Close(), "disk full")

	_, err = NewCSVWriter(&bytes.Buffer{}, "histogram")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	store.OnGeneration(ctx, generation(0, 0.5))
	store.OnGeneration(ctx, generation(1, 0.75))
	store.OnGeneration(ctx, generation(0, 0.9))
	require.NoError(t, store.Err())
	assert.Equal(t, 2, store.Runs())

	first, err := store.Generations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].Generation)
	assert.Equal(t, 0.75, first[1].BestFitness)
	assert.Equal(t, int64(4), first[1].Evaluations)
	assert.Equal(t, core.WeightVector{0.25, 0.5}, first[1].BestWeights)
	assert.InDelta(t, 0.5625, first[1].MeanFitness, 1e-12)
	assert.False(t, first[1].RecordedAt.IsZero())
	require.NoError(t, store.Close())

	// numbering continues across reopen
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	store.OnGeneration(ctx, generation(0, 0.3))
	assert.Equal(t, 3, store.Runs())

	third, err := store.Generations(ctx, 3)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, 0.3, third[0].BestFitness)
}

func TestMultiLogAndMetricsObservers(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	m := metrics.NewPrometheusMetrics(nil)

	var seen []int
	obs := Multi(
		NewLogObserver(logging.New(zap.New(zcore))),
		nil,
		NewMetricsObserver(m),
		evolution.ObserverFunc(func(_ context.Context, g evolution.Generation) {
			seen = append(seen, g.Number)
		}),
	)

	obs.OnGeneration(context.Background(), generation(0, 0.5))
	obs.OnGeneration(context.Background(), generation(1, 0.8))

	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, 2, logs.FilterMessage("Generation evaluated").Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GenerationsTotal))
	assert.InDelta(t, 0.6, testutil.ToFloat64(m.MeanFitness), 1e-12)
}
