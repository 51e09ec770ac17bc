package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Example is a labeled attribute vector taken from the stream.
// Treat it as immutable once created.
type Example struct {
	Attributes []float64
	Class      int
}

// NewExample copies attrs so later changes by the caller are not observed.
func NewExample(attrs []float64, class int) Example {
	cp := make([]float64, len(attrs))
	copy(cp, attrs)
	return Example{Attributes: cp, Class: class}
}

// Dim returns the number of attributes.
func (e Example) Dim() int { return len(e.Attributes) }

// Clone returns a deep copy of the example.
func (e Example) Clone() Example { return NewExample(e.Attributes, e.Class) }

// CheckFinite rejects NaN and infinite attributes, which have no distance.
func CheckFinite(attrs []float64) error {
	for i, a := range attrs {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return fmt.Errorf("%w: attribute %d is %v", ErrInvalidAttribute, i, a)
		}
	}
	return nil
}

// WeightVector holds one distance weight per attribute, each in [0, 1].
type WeightVector []float64

// NewWeightVector copies genes and rejects components outside [0, 1].
func NewWeightVector(genes []float64) (WeightVector, error) {
	for i, g := range genes {
		if math.IsNaN(g) || g < 0 || g > 1 {
			return nil, fmt.Errorf("gene %d = %v: %w", i, g, ErrInvalidWeightVector)
		}
	}
	w := make(WeightVector, len(genes))
	copy(w, genes)
	return w, nil
}

// Ones returns the all-ones vector of length d, i.e. plain euclidean distance.
func Ones(d int) WeightVector {
	w := make(WeightVector, d)
	for i := range w {
		w[i] = 1
	}
	return w
}

func (w WeightVector) Clone() WeightVector {
	if w == nil {
		return nil
	}
	cp := make(WeightVector, len(w))
	copy(cp, w)
	return cp
}

// Equal reports value equality.
func (w WeightVector) Equal(other WeightVector) bool {
	if len(w) != len(other) {
		return false
	}
	for i := range w {
		if w[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for value-equal vectors.
func (w WeightVector) Key() string {
	var b strings.Builder
	b.Grow(len(w) * 17)
	for i, v := range w {
		if i > 0 {
			b.WriteByte(':')
		}
		if v == 0 {
			v = 0 // fold -0
		}
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return b.String()
}

func (w WeightVector) String() string {
	parts := make([]string, len(w))
	for i, v := range w {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Votes holds one neighbour count per known class index.
type Votes []float64

// ArgMax returns the class with the most votes, lowest index on ties,
// or -1 for an empty vector.
func (v Votes) ArgMax() int {
	best := -1
	for i, n := range v {
		if best < 0 || n > v[best] {
			best = i
		}
	}
	return best
}

// Total returns the sum of all votes.
func (v Votes) Total() float64 {
	sum := 0.0
	for _, n := range v {
		sum += n
	}
	return sum
}

// Partition is a training/test view of the window. Both slices hold copies.
type Partition struct {
	Training []Example
	Test     []Example
}

// Size returns the total number of examples in both views.
func (p Partition) Size() int { return len(p.Training) + len(p.Test) }

// CloneExamples deep copies a slice of examples.
func CloneExamples(src []Example) []Example {
	out := make([]Example, len(src))
	for i, e := range src {
		out[i] = e.Clone()
	}
	return out
}
