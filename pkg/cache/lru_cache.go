package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/snow-ghost/eaknn/core"
)

// FitnessCache memoizes fitness scores of weight vectors for one search run.
// Scores are only valid for the partition they were computed against, so the
// cache must be invalidated whenever the training/test views change.
type FitnessCache struct {
	cache  *lru.Cache[CacheKey, float64]
	config *CacheConfig
	stats  *CacheStats
	mu     sync.Mutex
}

// NewFitnessCache creates a new bounded fitness cache
func NewFitnessCache(config *CacheConfig) (*FitnessCache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}
	if config.MaxSize < 1 {
		return nil, fmt.Errorf("%w: cache max size must be >= 1, got %d", core.ErrInvalidConfig, config.MaxSize)
	}

	c := &FitnessCache{
		config: config,
		stats:  &CacheStats{MaxSize: config.MaxSize},
	}

	cache, err := lru.NewWithEvict[CacheKey, float64](config.MaxSize, func(CacheKey, float64) {
		c.stats.Evictions++
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

// Get retrieves the score of a value-equal vector
func (c *FitnessCache) Get(w core.WeightVector) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	score, ok := c.cache.Get(KeyOf(w))
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return score, ok
}

// Put stores a score
func (c *FitnessCache) Put(w core.WeightVector, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(KeyOf(w), score)
}

// Invalidate drops every score. Eviction counters are not touched.
func (c *FitnessCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Purge fires the eviction callback for every entry; undo that.
	before := c.stats.Evictions
	c.cache.Purge()
	c.stats.Evictions = before
	c.stats.Invalidations++
}

// Stats returns cache statistics
func (c *FitnessCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := *c.stats
	stats.Size = c.cache.Len()
	stats.CalculateHitRate()
	return stats
}

// ResetStats resets cache statistics
func (c *FitnessCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = &CacheStats{MaxSize: c.config.MaxSize}
}

// Len returns the number of cached scores
func (c *FitnessCache) Len() int {
	return c.cache.Len()
}
