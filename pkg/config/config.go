package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/snow-ghost/eaknn/classifier"
	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/pkg/logging"
	"github.com/snow-ghost/eaknn/pkg/tracing"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EAKNN_CLASSIFIER_K.
const EnvPrefix = "EAKNN_"

// File is the process configuration: a YAML file overridden by environment
// variables.
type File struct {
	Classifier classifier.Config `yaml:"classifier" envPrefix:"CLASSIFIER_"`
	Logging    logging.Config    `yaml:"logging" envPrefix:"LOG_"`
	Tracing    tracing.Config    `yaml:"tracing" envPrefix:"TRACING_"`
	Metrics    Metrics           `yaml:"metrics" envPrefix:"METRICS_"`
	Monitor    Monitor           `yaml:"monitor" envPrefix:"MONITOR_"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr" env:"ADDR"`
}

// Monitor names the generation history sinks; empty paths disable them.
type Monitor struct {
	BestCSV       string `yaml:"best_csv" env:"BEST_CSV"`
	PopulationCSV string `yaml:"population_csv" env:"POPULATION_CSV"`
	SQLite        string `yaml:"sqlite" env:"SQLITE"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Classifier: classifier.DefaultConfig(),
		Logging:    logging.DefaultConfig(),
		Tracing:    tracing.Config{ServiceName: "eaknn"},
	}
}

// Load reads path (or $EAKNN_CONFIG when path is empty) over the defaults,
// applies environment overrides and validates the result. A missing file
// is an error only when it was named explicitly.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "CONFIG")
		explicit = path != ""
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && (explicit || !os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return LoadBytes(data)
}

// LoadBytes is Load for YAML already in memory.
func LoadBytes(data []byte) (*File, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			// the first error keeps the message readable
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, aggErr.Errors[0])
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}

	if err := core.Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders cfg as YAML, e.g. to print the effective configuration.
func Marshal(cfg *File) ([]byte, error) {
	return yaml.Marshal(cfg)
}
