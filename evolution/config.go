package evolution

// WarmStart selects how a run is seeded from the previous one.
type WarmStart string

const (
	// WarmStartNone always samples a fresh population.
	WarmStartNone WarmStart = "none"
	// WarmStartBest seeds with the previous best genotype only.
	WarmStartBest WarmStart = "best"
	// WarmStartPopulation seeds with the whole previous final population.
	WarmStartPopulation WarmStart = "population"
)

// ResultPolicy selects which individual a run reports as its best.
type ResultPolicy string

const (
	// ResultBestEver reports the fittest individual seen in any generation.
	ResultBestEver ResultPolicy = "best-ever"
	// ResultFinal reports the fittest individual of the last generation.
	ResultFinal ResultPolicy = "final"
)

// Config holds the genetic search parameters.
type Config struct {
	PopulationSize int `yaml:"population_size" env:"POPULATION_SIZE" validate:"gte=1"`
	// MaxEpochs bounds the number of bred generations.
	MaxEpochs int `yaml:"max_epochs" env:"MAX_EPOCHS" validate:"gte=1"`
	// Steadiness stops a run after this many generations without improvement.
	Steadiness      int     `yaml:"steadiness" env:"STEADINESS" validate:"gte=1"`
	TournamentArity int     `yaml:"tournament_arity" env:"TOURNAMENT_ARITY" validate:"gte=1"`
	CrossoverRate   float64 `yaml:"crossover_rate" env:"CROSSOVER_RATE" validate:"gte=0,lte=1"`
	// MixingRatio is the per-gene swap probability of uniform crossover.
	MixingRatio  float64 `yaml:"mixing_ratio" env:"MIXING_RATIO" validate:"gte=0,lte=1"`
	MutationRate float64 `yaml:"mutation_rate" env:"MUTATION_RATE" validate:"gte=0,lte=1"`
	// MutationScale is the scale of the Cauchy perturbation added to each gene.
	MutationScale float64 `yaml:"mutation_scale" env:"MUTATION_SCALE" validate:"gt=0"`
	ElitismRate   float64 `yaml:"elitism_rate" env:"ELITISM_RATE" validate:"gte=0,lte=1"`
	// UnitIndividual adds the all-ones vector to generation 0 when the warm
	// start seed leaves room for it, so cold starts always contain it.
	UnitIndividual bool `yaml:"unit_individual" env:"UNIT_INDIVIDUAL"`
	// Unique replaces duplicate offspring with fresh random individuals.
	Unique      bool         `yaml:"unique" env:"UNIQUE"`
	WarmStart   WarmStart    `yaml:"warm_start" env:"WARM_START" validate:"oneof=none best population"`
	Result      ResultPolicy `yaml:"result" env:"RESULT" validate:"oneof=best-ever final"`
	Parallelism int          `yaml:"parallelism" env:"PARALLELISM" validate:"gte=1"`
}

// DefaultConfig returns the parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		PopulationSize:  50,
		MaxEpochs:       100,
		Steadiness:      10,
		TournamentArity: 2,
		CrossoverRate:   0.6,
		MixingRatio:     0.5,
		MutationRate:    0.05,
		MutationScale:   1.0,
		ElitismRate:     0.02,
		UnitIndividual:  true,
		Unique:          true,
		WarmStart:       WarmStartPopulation,
		Result:          ResultBestEver,
		Parallelism:     1,
	}
}
