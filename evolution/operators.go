package evolution

import (
	"math"
	"math/rand"

	"github.com/snow-ghost/eaknn/core"
)

// randomWeights samples a vector uniformly from [0,1]^d.
func randomWeights(rng *rand.Rand, d int) core.WeightVector {
	w := make(core.WeightVector, d)
	for i := range w {
		w[i] = rng.Float64()
	}
	return w
}

// tournament draws arity individuals with replacement and keeps the fittest.
func tournament(rng *rand.Rand, pop Population, arity int) Individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < arity; i++ {
		if c := pop[rng.Intn(len(pop))]; c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

// uniformCrossover swaps each gene of two parents with probability ratio.
func uniformCrossover(rng *rand.Rand, a, b core.WeightVector, ratio float64) (core.WeightVector, core.WeightVector) {
	x, y := a.Clone(), b.Clone()
	for i := range x {
		if i < len(y) && rng.Float64() < ratio {
			x[i], y[i] = y[i], x[i]
		}
	}
	return x, y
}

// cauchyMutation perturbs every gene by a Cauchy(0, scale) draw and clamps
// the result back to [0, 1].
func cauchyMutation(rng *rand.Rand, w core.WeightVector, scale float64) core.WeightVector {
	out := w.Clone()
	for i := range out {
		out[i] = clamp(out[i] + cauchy(rng, scale))
	}
	return out
}

// cauchy samples Cauchy(0, scale) by inverse transform.
func cauchy(rng *rand.Rand, scale float64) float64 {
	return scale * math.Tan(math.Pi*(rng.Float64()-0.5))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
