package testkit

import (
	"io"
	"math/rand"

	"github.com/snow-ghost/eaknn/core"
)

// Source yields labeled examples one at a time and returns io.EOF when the
// stream ends.
type Source interface {
	Next() (core.Example, error)
}

// SliceSource replays examples held in memory.
type SliceSource struct {
	examples []core.Example
	pos      int
}

func FromExamples(examples []core.Example) *SliceSource {
	return &SliceSource{examples: examples}
}

func (s *SliceSource) Next() (core.Example, error) {
	if s.pos >= len(s.examples) {
		return core.Example{}, io.EOF
	}
	e := s.examples[s.pos]
	s.pos++
	return e.Clone(), nil
}

// Clusters draws n examples around the given centres, cycling through them
// so that class i is centred on centres[i]. Each attribute gets Gaussian
// noise with the given standard deviation.
func Clusters(rng *rand.Rand, n int, centres [][]float64, noise float64) []core.Example {
	if len(centres) == 0 {
		return nil
	}
	out := make([]core.Example, n)
	for i := range out {
		class := i % len(centres)
		attrs := make([]float64, len(centres[class]))
		for j, c := range centres[class] {
			attrs[j] = c + rng.NormFloat64()*noise
		}
		out[i] = core.Example{Attributes: attrs, Class: class}
	}
	return out
}

// TwoClusters is Clusters with class 0 at (0.1, 0.1) and class 1 at
// (0.9, 0.9).
func TwoClusters(rng *rand.Rand, n int, noise float64) []core.Example {
	return Clusters(rng, n, [][]float64{{0.1, 0.1}, {0.9, 0.9}}, noise)
}

// Threshold draws two uniform attributes and labels an example 0 when the
// first one is at most 0.5, 1 otherwise. Only the first attribute carries
// information.
func Threshold(rng *rand.Rand, n int) []core.Example {
	out := make([]core.Example, n)
	for i := range out {
		x1, x2 := rng.Float64(), rng.Float64()
		class := 1
		if x1 <= 0.5 {
			class = 0
		}
		out[i] = core.Example{Attributes: []float64{x1, x2}, Class: class}
	}
	return out
}

// PadNoise appends extra uniform attributes to copies of examples. The
// padding is irrelevant to the class, so good weights drive it to zero.
func PadNoise(rng *rand.Rand, examples []core.Example, extra int) []core.Example {
	out := make([]core.Example, len(examples))
	for i, e := range examples {
		attrs := make([]float64, 0, e.Dim()+extra)
		attrs = append(attrs, e.Attributes...)
		for j := 0; j < extra; j++ {
			attrs = append(attrs, rng.Float64())
		}
		out[i] = core.Example{Attributes: attrs, Class: e.Class}
	}
	return out
}
