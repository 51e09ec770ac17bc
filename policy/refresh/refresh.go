package refresh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/snow-ghost/eaknn/core"
)

// ShouldRefresh reports whether the weights must be searched again: always
// when no model exists yet, otherwise once more than threshold examples
// arrived since the last completed search.
func ShouldRefresh(since, threshold int64, hasModel bool) bool {
	return !hasModel || since > threshold
}

// Policy counts examples absorbed since the last completed search.
//
// The counter is reset only by Reset, which callers invoke once a search has
// finished, so a trigger observed during a long search does not start a
// second one.
type Policy struct {
	threshold int64
	timeout   time.Duration
	since     atomic.Int64
}

// New builds a policy. timeout bounds the wall time of a search run by
// Bound; zero means unbounded.
func New(threshold int64, timeout time.Duration) (*Policy, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: freshness threshold %d is negative", core.ErrInvalidConfig, threshold)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: refresh timeout %s is negative", core.ErrInvalidConfig, timeout)
	}
	return &Policy{threshold: threshold, timeout: timeout}, nil
}

// Observe records one absorbed example and returns the new count.
func (p *Policy) Observe() int64 { return p.since.Add(1) }

// Due reports whether a search should run now.
func (p *Policy) Due(hasModel bool) bool {
	return ShouldRefresh(p.since.Load(), p.threshold, hasModel)
}

// Reset marks a search as completed.
func (p *Policy) Reset() { p.since.Store(0) }

// Since returns the number of examples absorbed since the last search.
func (p *Policy) Since() int64 { return p.since.Load() }

func (p *Policy) Threshold() int64 { return p.threshold }

func (p *Policy) Timeout() time.Duration { return p.timeout }

// Bound derives the context a search runs under. The search itself decides
// what to return when the deadline passes.
func (p *Policy) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
