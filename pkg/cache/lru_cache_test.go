package cache

import (
	"errors"
	"testing"

	"github.com/snow-ghost/eaknn/core"
)

func TestFitnessCache(t *testing.T) {
	cache, err := NewFitnessCache(&CacheConfig{MaxSize: 10})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	cache.Put(core.WeightVector{0.2, 0.4}, 0.8)

	// a distinct instance with equal values must hit
	score, exists := cache.Get(core.WeightVector{0.2, 0.4})
	if !exists {
		t.Error("Expected entry to exist")
	}
	if score != 0.8 {
		t.Errorf("Expected 0.8, got %v", score)
	}

	if _, exists := cache.Get(core.WeightVector{0.2, 0.41}); exists {
		t.Error("Expected miss for a different vector")
	}

	stats := cache.Stats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestFitnessCacheInvalidate(t *testing.T) {
	cache, err := NewFitnessCache(nil)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	for i := 0; i < 3; i++ {
		cache.Put(core.WeightVector{float64(i) / 10}, float64(i))
	}
	if cache.Len() != 3 {
		t.Errorf("Expected cache size to be 3, got %d", cache.Len())
	}

	cache.Invalidate()

	if cache.Len() != 0 {
		t.Errorf("Expected cache size to be 0, got %d", cache.Len())
	}
	if _, exists := cache.Get(core.WeightVector{0.1}); exists {
		t.Error("Expected no entry after invalidation")
	}

	stats := cache.Stats()
	if stats.Invalidations != 1 {
		t.Errorf("Expected 1 invalidation, got %d", stats.Invalidations)
	}
	if stats.Evictions != 0 {
		t.Errorf("Invalidation must not count as eviction, got %d", stats.Evictions)
	}
}

func TestFitnessCacheEviction(t *testing.T) {
	cache, err := NewFitnessCache(&CacheConfig{MaxSize: 3})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	for i := 0; i < 5; i++ {
		cache.Put(core.WeightVector{float64(i) / 10}, 1)
	}

	if cache.Len() != 3 {
		t.Errorf("Expected cache size to be 3, got %d", cache.Len())
	}
	if stats := cache.Stats(); stats.Evictions != 2 {
		t.Errorf("Expected 2 evictions, got %d", stats.Evictions)
	}

	cache.ResetStats()
	if stats := cache.Stats(); stats.Evictions != 0 || stats.Size != 3 {
		t.Errorf("Unexpected stats after reset: %+v", stats)
	}
}

func TestNewFitnessCacheRejectsZeroSize(t *testing.T) {
	_, err := NewFitnessCache(&CacheConfig{MaxSize: 0})
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
