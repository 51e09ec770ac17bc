package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snow-ghost/eaknn/classifier"
	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/evolution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
classifier:
  k: 3
  limit: 100
  freshness_threshold: 50
  refresh_timeout: 2s
  partition: stratified
  approximate: true
  approximation_rate: 0.05
  population_size: 20
  max_epochs: 10
  steadiness: 5
  warm_start: best
  parallelism: 4
logging:
  level: debug
  format: console
metrics:
  addr: ":9090"
monitor:
  best_csv: best.csv
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eaknn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	c := cfg.Classifier
	assert.Equal(t, 3, c.K)
	assert.Equal(t, 100, c.Limit)
	assert.Equal(t, int64(50), c.FreshnessThreshold)
	assert.Equal(t, 2*time.Second, c.RefreshTimeout)
	assert.Equal(t, classifier.PartitionStratified, c.Partition)
	assert.True(t, c.Approximate)
	assert.Equal(t, 20, c.PopulationSize)
	assert.Equal(t, 10, c.MaxEpochs)
	assert.Equal(t, evolution.WarmStartBest, c.WarmStart)
	assert.Equal(t, 4, c.Parallelism)

	// untouched keys keep their defaults
	assert.Equal(t, 0.6, c.CrossoverRate)
	assert.Equal(t, 4096, c.CacheSize)
	assert.Equal(t, "json", Default().Logging.Format)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "best.csv", cfg.Monitor.BestCSV)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("EAKNN_CLASSIFIER_K", "7")
	t.Setenv("EAKNN_CLASSIFIER_POPULATION_SIZE", "40")
	t.Setenv("EAKNN_CLASSIFIER_RESULT", "final")
	t.Setenv("EAKNN_LOG_LEVEL", "warn")
	t.Setenv("EAKNN_MONITOR_SQLITE", "history.db")

	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Classifier.K)
	assert.Equal(t, 40, cfg.Classifier.PopulationSize)
	assert.Equal(t, evolution.ResultFinal, cfg.Classifier.Result)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "history.db", cfg.Monitor.SQLite)
	assert.Equal(t, 100, cfg.Classifier.Limit)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EAKNN_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, classifier.DefaultConfig(), cfg.Classifier)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	t.Setenv("EAKNN_CONFIG", writeFile(t, "classifier:\n  k: 9\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Classifier.K)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadBytes([]byte("classifier: [not, a, map]"))
	assert.Error(t, err)

	_, err = LoadBytes([]byte("classifier:\n  k: 0\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = LoadBytes([]byte("logging:\n  level: chatty\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	t.Setenv("EAKNN_CLASSIFIER_LIMIT", "lots")
	_, err = LoadBytes(nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	data, err := Marshal(cfg)
	require.NoError(t, err)

	again, err := LoadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
