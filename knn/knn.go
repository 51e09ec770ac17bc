package knn

import (
	"math"
	"sort"

	"github.com/snow-ghost/eaknn/core"
)

// Distance computes sqrt(sum_i w_i * (a_i - b_i)^2) over the attributes
// present in both vectors. Missing weights count as zero.
func Distance(a, b []float64, w core.WeightVector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(w) < n {
		n = len(w)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += w[i] * d * d
	}
	return math.Sqrt(sum)
}

// Learner fits weighted k-NN models with a fixed neighbour count.
type Learner struct {
	K int
}

// NewLearner returns a learner using k neighbours.
func NewLearner(k int) *Learner { return &Learner{K: k} }

// Fit implements core.Learner. k is clamped to the training set size.
func (l *Learner) Fit(training []core.Example, weights core.WeightVector) core.Model {
	return Fit(training, weights, l.K)
}

// Model is a brute-force nearest neighbour index over a training view.
type Model struct {
	training []core.Example
	weights  core.WeightVector
	k        int
}

// Fit builds a model. The training slice is referenced, not copied: callers
// pass views that are already private copies of the window.
func Fit(training []core.Example, weights core.WeightVector, k int) *Model {
	if k > len(training) {
		k = len(training)
	}
	if k < 0 {
		k = 0
	}
	return &Model{training: training, weights: weights, k: k}
}

// K returns the effective neighbour count after clamping.
func (m *Model) K() int { return m.k }

type neighbour struct {
	index    int
	distance float64
}

// Neighbours returns the indexes of the k nearest training examples,
// nearest first. Equal distances keep training order.
func (m *Model) Neighbours(attrs []float64) []int {
	if m.k == 0 {
		return nil
	}
	ns := make([]neighbour, len(m.training))
	for i, e := range m.training {
		ns[i] = neighbour{index: i, distance: Distance(attrs, e.Attributes, m.weights)}
	}
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].distance < ns[j].distance
	})
	out := make([]int, m.k)
	for i := range out {
		out[i] = ns[i].index
	}
	return out
}

// Classify returns the majority class among the k nearest neighbours.
// Ties go to the lowest class label. Returns -1 without training data.
func (m *Model) Classify(attrs []float64) int {
	idx := m.Neighbours(attrs)
	if len(idx) == 0 {
		return -1
	}
	counts := make(map[int]int, len(idx))
	for _, i := range idx {
		counts[m.training[i].Class]++
	}
	best, bestCount := -1, 0
	for class, n := range counts {
		if n > bestCount || (n == bestCount && class < best) {
			best, bestCount = class, n
		}
	}
	return best
}

// Votes counts neighbour classes into numClasses slots (at least one).
// Labels that do not fit the vector are ignored.
func (m *Model) Votes(attrs []float64, numClasses int) core.Votes {
	if numClasses < 1 {
		numClasses = 1
	}
	votes := make(core.Votes, numClasses)
	for _, i := range m.Neighbours(attrs) {
		if c := m.training[i].Class; c >= 0 && c < numClasses {
			votes[c]++
		}
	}
	return votes
}

// Score returns hits/|test|, or 0 when either view is empty.
func (m *Model) Score(test []core.Example) float64 {
	if len(test) == 0 || m.k == 0 {
		return 0
	}
	predicted := make([]int, len(test))
	for i, e := range test {
		predicted[i] = m.Classify(e.Attributes)
	}
	return core.Accuracy(core.Classes(test), predicted)
}

// Fitness returns a function scoring weight vectors against a fixed partition.
func Fitness(p core.Partition, k int) core.FitnessFunc {
	return LearnerFitness(NewLearner(k), p)
}

// LearnerFitness scores weight vectors with any learner. The same learner
// must serve prediction so that fitness and votes agree on tie-breaks.
func LearnerFitness(l core.Learner, p core.Partition) core.FitnessFunc {
	return func(w core.WeightVector) float64 {
		return l.Fit(p.Training, w).Score(p.Test)
	}
}
