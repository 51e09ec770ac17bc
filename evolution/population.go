package evolution

import (
	"math"
	"sort"

	"github.com/snow-ghost/eaknn/core"
)

// Individual is a candidate weight vector and its fitness.
type Individual struct {
	Weights core.WeightVector
	Fitness float64

	evaluated bool
}

// Clone deep copies the individual.
func (i Individual) Clone() Individual {
	i.Weights = i.Weights.Clone()
	return i
}

// Population is the set of individuals of one generation.
type Population []Individual

// Best returns the fittest individual, the earliest one on ties.
func (p Population) Best() (Individual, bool) {
	if len(p) == 0 {
		return Individual{}, false
	}
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i].Fitness > p[best].Fitness {
			best = i
		}
	}
	return p[best], true
}

// Sorted returns a copy ordered by descending fitness.
func (p Population) Sorted() Population {
	out := p.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fitness > out[j].Fitness
	})
	return out
}

// Clone deep copies the population.
func (p Population) Clone() Population {
	if p == nil {
		return nil
	}
	out := make(Population, len(p))
	for i, ind := range p {
		out[i] = ind.Clone()
	}
	return out
}

// Weights returns the genotypes in population order.
func (p Population) Weights() []core.WeightVector {
	out := make([]core.WeightVector, len(p))
	for i, ind := range p {
		out[i] = ind.Weights.Clone()
	}
	return out
}

// Stats summarises fitness across a population.
type Stats struct {
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64
}

// Stats computes fitness moments. An empty population yields zeros.
func (p Population) Stats() Stats {
	if len(p) == 0 {
		return Stats{}
	}
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	for _, ind := range p {
		sum += ind.Fitness
		s.Min = math.Min(s.Min, ind.Fitness)
		s.Max = math.Max(s.Max, ind.Fitness)
	}
	s.Mean = sum / float64(len(p))
	variance := 0.0
	for _, ind := range p {
		d := ind.Fitness - s.Mean
		variance += d * d
	}
	s.StdDev = math.Sqrt(variance / float64(len(p)))
	return s
}
