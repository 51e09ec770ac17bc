package cache

import (
	"sync"

	"github.com/snow-ghost/eaknn/core"
	"golang.org/x/sync/singleflight"
)

// Deduplicator collapses concurrent evaluations of the same weight vector
type Deduplicator struct {
	group singleflight.Group
	mu    sync.Mutex
	stats DedupStats
}

// DedupStats represents deduplication statistics
type DedupStats struct {
	Requests     int64 `json:"requests"`
	Deduplicated int64 `json:"deduplicated"`
	CacheHits    int64 `json:"cache_hits"`
	Evaluations  int64 `json:"evaluations"`
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Execute evaluates w once per in-flight key
func (d *Deduplicator) Execute(w core.WeightVector, fn core.FitnessFunc) float64 {
	return d.ExecuteWithCache(w, nil, fn)
}

// ExecuteWithCache looks w up in cache first, evaluates on a miss and stores
// the result. Concurrent callers with a value-equal vector share one evaluation.
func (d *Deduplicator) ExecuteWithCache(w core.WeightVector, cache *FitnessCache, fn core.FitnessFunc) float64 {
	if cache != nil {
		if score, ok := cache.Get(w); ok {
			d.updateStats(false, true, false)
			return score
		}
	}

	evaluated := false
	result, _, shared := d.group.Do(string(KeyOf(w)), func() (interface{}, error) {
		evaluated = true
		score := fn(w)
		if cache != nil {
			cache.Put(w, score)
		}
		return score, nil
	})

	d.updateStats(shared && !evaluated, false, evaluated)
	return result.(float64)
}

// updateStats updates deduplication statistics
func (d *Deduplicator) updateStats(deduplicated, cacheHit, evaluated bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Requests++
	if deduplicated {
		d.stats.Deduplicated++
	}
	if cacheHit {
		d.stats.CacheHits++
	}
	if evaluated {
		d.stats.Evaluations++
	}
}

// Stats returns deduplication statistics
func (d *Deduplicator) Stats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stats
}

// Reset resets all statistics
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats = DedupStats{}
}

// GetCacheHitRate calculates the share of requests answered by the cache
func (d *Deduplicator) GetCacheHitRate() float64 {
	stats := d.Stats()
	if stats.Requests == 0 {
		return 0.0
	}
	return float64(stats.CacheHits) / float64(stats.Requests)
}
