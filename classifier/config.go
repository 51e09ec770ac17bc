package classifier

import (
	"time"

	"github.com/snow-ghost/eaknn/evolution"
	"github.com/snow-ghost/eaknn/splitter"
)

// PartitionKind names a partition policy.
type PartitionKind string

const (
	PartitionRatio      PartitionKind = "ratio"
	PartitionStratified PartitionKind = "stratified"
)

// Config holds the classifier parameters. The search parameters are
// embedded so a config file keeps them on the same level.
type Config struct {
	evolution.Config `yaml:",inline"`

	K     int `yaml:"k" env:"K" validate:"gte=1"`
	Limit int `yaml:"limit" env:"LIMIT" validate:"gte=1"`
	// FreshnessThreshold is the number of examples after which the weights
	// are searched again.
	FreshnessThreshold int64 `yaml:"freshness_threshold" env:"FRESHNESS_THRESHOLD" validate:"gte=1"`
	// RefreshTimeout bounds one search; zero leaves it bounded by MaxEpochs only.
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"REFRESH_TIMEOUT" validate:"gte=0"`

	Partition PartitionKind `yaml:"partition" env:"PARTITION" validate:"oneof=ratio stratified"`
	// Ratio is the training share; zero selects the policy default.
	Ratio             float64 `yaml:"ratio" env:"RATIO" validate:"omitempty,gt=0,lt=1"`
	Approximate       bool    `yaml:"approximate" env:"APPROXIMATE"`
	ApproximationRate float64 `yaml:"approximation_rate" env:"APPROXIMATION_RATE" validate:"omitempty,gt=0,lte=1"`

	CacheSize int `yaml:"cache_size" env:"CACHE_SIZE" validate:"gte=1"`
	// Seed makes runs reproducible; zero seeds from the clock.
	Seed int64 `yaml:"seed" env:"SEED"`
}

// DefaultConfig returns the parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		Config:             evolution.DefaultConfig(),
		K:                  5,
		Limit:              1000,
		FreshnessThreshold: 1000,
		Partition:          PartitionRatio,
		CacheSize:          4096,
	}
}

func (c Config) ratio() float64 {
	switch {
	case c.Ratio > 0:
		return c.Ratio
	case c.Partition == PartitionStratified:
		return splitter.DefaultStratifiedRatio
	default:
		return splitter.DefaultRatio
	}
}
