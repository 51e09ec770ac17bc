package splitter

import (
	"maps"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/snow-ghost/eaknn/core"
)

const (
	// DefaultStratifiedRatio is the training share of the window for Stratified.
	DefaultStratifiedRatio = 0.6
	// DefaultApproximationRate is the share of a view drawn for the rarest class.
	DefaultApproximationRate = 0.01
)

// StratifiedConfig configures the incremental class-grouped policy.
type StratifiedConfig struct {
	Limit             int     `validate:"gte=1"`
	Ratio             float64 `validate:"gt=0,lt=1"`
	Approximate       bool
	ApproximationRate float64 `validate:"gt=0,lte=1"`
}

// Stratified keeps a chronological training/test division of the window.
// New examples fill the training view first, then the test view; once both
// are full the oldest training example is dropped, the oldest test example
// moves to training and the new one enters test. Resident examples are also
// grouped by class, and class frequencies are counted over the lifetime of
// the stream for approximate sampling.
//
// Stratified tracks the window itself through Add, so Partition ignores the
// snapshot it is given.
type Stratified struct {
	cfg         StratifiedConfig
	trainingCap int
	testCap     int

	training       []core.Example
	test           []core.Example
	trainingGroups map[int][]core.Example
	testGroups     map[int][]core.Example
	counts         map[int]int64

	rng *rand.Rand
}

// NewStratified validates cfg. A nil rng gets a time-seeded source.
func NewStratified(cfg StratifiedConfig, rng *rand.Rand) (*Stratified, error) {
	if cfg.ApproximationRate == 0 {
		cfg.ApproximationRate = DefaultApproximationRate
	}
	if err := core.Validate(cfg); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = newRand()
	}
	trainingCap := TrainingSize(cfg.Limit, cfg.Ratio)
	s := &Stratified{
		cfg:         cfg,
		trainingCap: trainingCap,
		testCap:     cfg.Limit - trainingCap,
		rng:         rng,
	}
	s.Reset()
	return s, nil
}

func (s *Stratified) Name() string { return "stratified" }

func (s *Stratified) Reset() {
	s.training = nil
	s.test = nil
	s.trainingGroups = make(map[int][]core.Example)
	s.testGroups = make(map[int][]core.Example)
	s.counts = make(map[int]int64)
}

// Add places e according to the incremental policy.
func (s *Stratified) Add(e core.Example) {
	e = e.Clone()
	s.counts[e.Class]++

	switch {
	case len(s.training) < s.trainingCap:
		s.pushTraining(e)
	case len(s.test) < s.testCap:
		s.pushTest(e)
	case s.testCap == 0:
		s.popTraining()
		s.pushTraining(e)
	default:
		s.popTraining()
		s.pushTraining(s.popTest())
		s.pushTest(e)
	}
}

func (s *Stratified) pushTraining(e core.Example) {
	s.training = append(s.training, e)
	s.trainingGroups[e.Class] = append(s.trainingGroups[e.Class], e)
}

func (s *Stratified) pushTest(e core.Example) {
	s.test = append(s.test, e)
	s.testGroups[e.Class] = append(s.testGroups[e.Class], e)
}

// popTraining drops the oldest training example. Groups are FIFO per class,
// so it is always the head of its class group.
func (s *Stratified) popTraining() core.Example {
	e := s.training[0]
	s.training = s.training[1:]
	s.trainingGroups[e.Class] = dropHead(s.trainingGroups[e.Class])
	return e
}

func (s *Stratified) popTest() core.Example {
	e := s.test[0]
	s.test = s.test[1:]
	s.testGroups[e.Class] = dropHead(s.testGroups[e.Class])
	return e
}

func dropHead(group []core.Example) []core.Example {
	if len(group) <= 1 {
		return nil
	}
	return group[1:]
}

// Partition returns the full views, or approximated ones when configured.
func (s *Stratified) Partition([]core.Example) core.Partition {
	if s.cfg.Approximate {
		return core.Partition{
			Training: s.ApproximatedTraining(),
			Test:     s.ApproximatedTest(),
		}
	}
	return core.Partition{
		Training: s.Training(),
		Test:     s.Test(),
	}
}

// Training returns a copy of the resident training examples, oldest first.
func (s *Stratified) Training() []core.Example { return core.CloneExamples(s.training) }

// Test returns a copy of the resident test examples, oldest first.
func (s *Stratified) Test() []core.Example { return core.CloneExamples(s.test) }

// TrainingGroup returns a copy of the resident training examples of class c.
func (s *Stratified) TrainingGroup(c int) []core.Example {
	return core.CloneExamples(s.trainingGroups[c])
}

// TestGroup returns a copy of the resident test examples of class c.
func (s *Stratified) TestGroup(c int) []core.Example {
	return core.CloneExamples(s.testGroups[c])
}

// ClassCounts returns how many examples of each class were ever added.
func (s *Stratified) ClassCounts() map[int]int64 { return maps.Clone(s.counts) }

// ApproximatedTraining samples the training groups, see approximate.
func (s *Stratified) ApproximatedTraining() []core.Example {
	return s.approximate(s.trainingGroups, len(s.training))
}

// ApproximatedTest samples the test groups, see approximate.
func (s *Stratified) ApproximatedTest() []core.Example {
	return s.approximate(s.testGroups, len(s.test))
}

// approximate draws with replacement from each non-empty class group. The
// rarest class gets max(1, ceil(rate*total)) draws and every other class
// gets that many scaled by its lifetime frequency relative to the rarest
// one.
func (s *Stratified) approximate(groups map[int][]core.Example, total int) []core.Example {
	if total == 0 {
		return nil
	}

	classes := make([]int, 0, len(groups))
	var minCount int64
	for _, c := range slices.Sorted(maps.Keys(groups)) {
		if len(groups[c]) == 0 {
			continue
		}
		classes = append(classes, c)
		if n := s.counts[c]; minCount == 0 || n < minCount {
			minCount = n
		}
	}
	if minCount <= 0 {
		out := make([]core.Example, 0, total)
		for _, c := range classes {
			out = append(out, core.CloneExamples(groups[c])...)
		}
		return out
	}

	base := math.Max(1, math.Ceil(s.cfg.ApproximationRate*float64(total)))
	var out []core.Example
	for _, c := range classes {
		group := groups[c]
		n := int(math.Ceil(base * float64(s.counts[c]) / float64(minCount)))
		for i := 0; i < n; i++ {
			out = append(out, group[s.rng.Intn(len(group))].Clone())
		}
	}
	return out
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
