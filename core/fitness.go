package core

// Accuracy returns the share of positions where predicted equals expected.
// Empty input scores 0: a model cannot be rated without test data.
func Accuracy(expected, predicted []int) float64 {
	if len(expected) == 0 || len(expected) != len(predicted) {
		return 0
	}
	hits := 0
	for i := range expected {
		if expected[i] == predicted[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(expected))
}

// Classes extracts the labels of examples in order.
func Classes(examples []Example) []int {
	out := make([]int, len(examples))
	for i, e := range examples {
		out[i] = e.Class
	}
	return out
}
