package cache

import "github.com/snow-ghost/eaknn/core"

// CacheKey identifies a weight vector by value.
type CacheKey string

// KeyOf returns the cache key of w. Value-equal vectors share a key.
func KeyOf(w core.WeightVector) CacheKey { return CacheKey(w.Key()) }

// CacheConfig holds cache configuration
type CacheConfig struct {
	MaxSize int `json:"max_size" yaml:"max_size"` // Maximum number of scored vectors
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{MaxSize: 4096}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	HitRate       float64 `json:"hit_rate"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
}

// CalculateHitRate calculates the hit rate
func (s *CacheStats) CalculateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	} else {
		s.HitRate = 0.0
	}
}
