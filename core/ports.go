package core

// PartitionPolicy turns the resident window into training and test views.
type PartitionPolicy interface {
	Name() string
	// Add is called for every example absorbed by the window, in arrival order.
	Add(e Example)
	// Partition returns copies, so later window mutation never touches them.
	Partition(snapshot []Example) Partition
	Reset()
}

// Learner builds a classification model for a fixed weighting of attributes.
type Learner interface {
	Fit(training []Example, weights WeightVector) Model
}

type Model interface {
	// Classify returns the predicted class, or -1 when the model has no data.
	Classify(attrs []float64) int
	// Votes counts neighbour classes into a vector of numClasses slots.
	Votes(attrs []float64, numClasses int) Votes
	// Score returns the fraction of test examples classified correctly.
	Score(test []Example) float64
}

// FitnessFunc scores a weight vector; higher is better.
type FitnessFunc func(w WeightVector) float64
