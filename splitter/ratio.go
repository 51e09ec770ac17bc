package splitter

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/snow-ghost/eaknn/core"
)

// DefaultRatio is the training share used by Ratio when none is configured.
const DefaultRatio = 0.7

// Ratio shuffles the window and cuts it at ceil(n*ratio).
// The first part is training, the rest is test.
type Ratio struct {
	ratio float64
	rng   *rand.Rand
}

// NewRatio creates a ratio splitter. A nil rng gets a time-seeded source;
// pass a seeded one for reproducible partitions.
func NewRatio(ratio float64, rng *rand.Rand) (*Ratio, error) {
	if !(ratio > 0 && ratio < 1) {
		return nil, fmt.Errorf("%w: ratio must be in (0, 1), got %v", core.ErrInvalidConfig, ratio)
	}
	if rng == nil {
		rng = newRand()
	}
	return &Ratio{ratio: ratio, rng: rng}, nil
}

func (r *Ratio) Name() string { return "ratio" }

// Add is a no-op: the split is recomputed from every snapshot.
func (r *Ratio) Add(core.Example) {}

func (r *Ratio) Reset() {}

// Partition shuffles a copy of snapshot. When ceil(n*ratio) == n the test
// view is empty and fitness evaluates to zero.
func (r *Ratio) Partition(snapshot []core.Example) core.Partition {
	shuffled := core.CloneExamples(snapshot)
	r.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := TrainingSize(len(shuffled), r.ratio)
	return core.Partition{
		Training: shuffled[:cut:cut],
		Test:     shuffled[cut:],
	}
}

// TrainingSize returns ceil(n*ratio) bounded by n.
func TrainingSize(n int, ratio float64) int {
	size := int(math.Ceil(float64(n) * ratio))
	if size > n {
		size = n
	}
	return size
}
