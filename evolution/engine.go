package evolution

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/pkg/cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// uniqueRetries bounds the attempts to replace a duplicate offspring.
const uniqueRetries = 10

// StopReason tells why a run ended.
type StopReason string

const (
	StopMaxEpochs     StopReason = "max-epochs"
	StopSteadyFitness StopReason = "steady-fitness"
	StopCanceled      StopReason = "canceled"
)

// Generation is reported to observers once per generation. Generation 0 is
// the initial population.
type Generation struct {
	Number      int
	Best        Individual
	BestEver    Individual
	Stats       Stats
	Population  Population
	Evaluations int64
	CacheHits   int64
}

// Observer receives generation results. It is the only place monitoring
// hooks into a run; the engine itself does no I/O.
type Observer interface {
	OnGeneration(ctx context.Context, g Generation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, g Generation)

func (f ObserverFunc) OnGeneration(ctx context.Context, g Generation) { f(ctx, g) }

// Result is the outcome of one run.
type Result struct {
	Best        Individual
	Population  Population
	Generations int
	Reason      StopReason
	Evaluations int64
	CacheHits   int64
	Duration    time.Duration
	WarmStarted bool
}

// Engine searches weight vectors with a generational genetic algorithm.
// It is not safe for concurrent runs.
type Engine struct {
	cfg       Config
	rng       *rand.Rand
	cache     *cache.FitnessCache
	dedup     *cache.Deduplicator
	tracer    trace.Tracer
	observers []Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source, e.g. a seeded one for reproducible runs.
func WithRand(rng *rand.Rand) Option { return func(e *Engine) { e.rng = rng } }

// WithCache shares a fitness cache with the caller.
func WithCache(c *cache.FitnessCache) Option { return func(e *Engine) { e.cache = c } }

// WithTracer sets the OpenTelemetry tracer for run spans.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithObserver registers a generation observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// New validates cfg and builds an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := core.Validate(cfg); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:   cfg,
		dedup: cache.NewDeduplicator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.cache == nil {
		c, err := cache.NewFitnessCache(nil)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/snow-ghost/eaknn/evolution")
	}
	return e, nil
}

// Cache returns the fitness cache used by the engine.
func (e *Engine) Cache() *cache.FitnessCache { return e.cache }

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// Run searches d-dimensional weight vectors. seed is the population retained
// from the previous run and is used according to Config.WarmStart; pass nil
// for a cold start. Scores already in the cache are trusted, so callers
// must invalidate it when the data behind fitness changes.
//
// Cancelling ctx ends the run after the current generation and returns the
// best individual found so far.
func (e *Engine) Run(ctx context.Context, d int, fitness core.FitnessFunc, seed Population) (*Result, error) {
	if fitness == nil {
		return nil, fmt.Errorf("%w: nil fitness function", core.ErrInvalidConfig)
	}
	if d < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", core.ErrInvalidConfig, d)
	}

	ctx, span := e.tracer.Start(ctx, "evolution.run", trace.WithAttributes(
		attribute.Int("evolution.dimension", d),
		attribute.Int("evolution.population_size", e.cfg.PopulationSize),
		attribute.Int("evolution.max_epochs", e.cfg.MaxEpochs),
		attribute.Int("evolution.steadiness", e.cfg.Steadiness),
	))
	defer span.End()

	start := time.Now()
	before := e.dedup.Stats()

	pop, warm, err := e.initialPopulation(d, seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := e.evaluate(ctx, pop, fitness); err != nil {
		return nil, err
	}

	bestEver, _ := pop.Best()
	bestEver = bestEver.Clone()
	e.notify(ctx, 0, pop, bestEver, before)

	reason := StopMaxEpochs
	stagnant, bred := 0, 0
	for bred < e.cfg.MaxEpochs {
		if ctx.Err() != nil {
			reason = StopCanceled
			break
		}

		next, err := e.breed(pop, d)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err := e.evaluate(ctx, next, fitness); err != nil {
			return nil, err
		}
		pop = next
		bred++

		if genBest, _ := pop.Best(); genBest.Fitness > bestEver.Fitness {
			bestEver = genBest.Clone()
			stagnant = 0
		} else {
			stagnant++
		}
		e.notify(ctx, bred, pop, bestEver, before)

		if stagnant >= e.cfg.Steadiness {
			reason = StopSteadyFitness
			break
		}
	}

	best := bestEver
	if e.cfg.Result == ResultFinal {
		best, _ = pop.Best()
		best = best.Clone()
	}

	after := e.dedup.Stats()
	result := &Result{
		Best:        best,
		Population:  pop.Clone(),
		Generations: bred,
		Reason:      reason,
		Evaluations: after.Evaluations - before.Evaluations,
		CacheHits:   after.CacheHits - before.CacheHits,
		Duration:    time.Since(start),
		WarmStarted: warm,
	}

	span.SetAttributes(
		attribute.Int("evolution.generations", result.Generations),
		attribute.String("evolution.stop_reason", string(result.Reason)),
		attribute.Float64("evolution.best_fitness", result.Best.Fitness),
		attribute.Int64("evolution.evaluations", result.Evaluations),
		attribute.Bool("evolution.warm_start", warm),
	)
	return result, nil
}

// initialPopulation builds generation 0 and reports whether it was seeded.
func (e *Engine) initialPopulation(d int, seed Population) (Population, bool, error) {
	size := e.cfg.PopulationSize
	pop := make(Population, 0, size)
	seen := make(map[string]struct{}, size)

	admit := func(w core.WeightVector) error {
		if len(w) != d {
			return fmt.Errorf("%w: individual has %d genes, want %d", core.ErrInvalidWeightVector, len(w), d)
		}
		if _, err := core.NewWeightVector(w); err != nil {
			return err
		}
		if e.cfg.Unique {
			if _, dup := seen[w.Key()]; dup {
				return nil
			}
			seen[w.Key()] = struct{}{}
		}
		pop = append(pop, Individual{Weights: w.Clone()})
		return nil
	}

	warm := false
	if seedUsable(seed, d) {
		switch e.cfg.WarmStart {
		case WarmStartPopulation:
			warm = true
			for _, ind := range seed {
				if len(pop) == size {
					break
				}
				if err := admit(ind.Weights); err != nil {
					return nil, false, err
				}
			}
		case WarmStartBest:
			warm = true
			best, _ := seed.Best()
			if err := admit(best.Weights); err != nil {
				return nil, false, err
			}
		}
	}

	if e.cfg.UnitIndividual && len(pop) < size {
		if err := admit(core.Ones(d)); err != nil {
			return nil, false, err
		}
	}
	for len(pop) < size {
		w := randomWeights(e.rng, d)
		for i := 0; i < uniqueRetries && e.isDuplicate(seen, w); i++ {
			w = randomWeights(e.rng, d)
		}
		if e.isDuplicate(seen, w) {
			// no distinct vector left to draw, e.g. d == 0
			pop = append(pop, Individual{Weights: w})
			continue
		}
		if err := admit(w); err != nil {
			return nil, false, err
		}
	}
	return pop, warm, nil
}

func seedUsable(seed Population, d int) bool {
	if len(seed) == 0 {
		return false
	}
	for _, ind := range seed {
		if len(ind.Weights) != d {
			return false
		}
	}
	return true
}

func (e *Engine) isDuplicate(seen map[string]struct{}, w core.WeightVector) bool {
	if !e.cfg.Unique {
		return false
	}
	_, dup := seen[w.Key()]
	return dup
}

// breed produces the next generation: elites first, then offspring of
// tournament-selected parents through crossover and mutation.
func (e *Engine) breed(pop Population, d int) (Population, error) {
	size := e.cfg.PopulationSize
	next := make(Population, 0, size)
	seen := make(map[string]struct{}, size)

	elites := int(math.Floor(e.cfg.ElitismRate * float64(size)))
	for _, ind := range pop.Sorted()[:min(elites, len(pop))] {
		seen[ind.Weights.Key()] = struct{}{}
		next = append(next, ind)
	}

	add := func(w core.WeightVector) error {
		if _, err := core.NewWeightVector(w); err != nil {
			return fmt.Errorf("offspring: %w", err)
		}
		for i := 0; i < uniqueRetries && e.isDuplicate(seen, w); i++ {
			w = randomWeights(e.rng, d)
		}
		seen[w.Key()] = struct{}{}
		next = append(next, Individual{Weights: w})
		return nil
	}

	for len(next) < size {
		a := tournament(e.rng, pop, e.cfg.TournamentArity).Weights
		b := tournament(e.rng, pop, e.cfg.TournamentArity).Weights
		if e.rng.Float64() < e.cfg.CrossoverRate {
			a, b = uniformCrossover(e.rng, a, b, e.cfg.MixingRatio)
		} else {
			a, b = a.Clone(), b.Clone()
		}
		if e.rng.Float64() < e.cfg.MutationRate {
			a = cauchyMutation(e.rng, a, e.cfg.MutationScale)
		}
		if e.rng.Float64() < e.cfg.MutationRate {
			b = cauchyMutation(e.rng, b, e.cfg.MutationScale)
		}

		if err := add(a); err != nil {
			return nil, err
		}
		if len(next) < size {
			if err := add(b); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// evaluate scores every individual without a fitness from this run.
func (e *Engine) evaluate(ctx context.Context, pop Population, fitness core.FitnessFunc) error {
	if e.cfg.Parallelism <= 1 {
		for i := range pop {
			if !pop[i].evaluated {
				pop[i].Fitness = e.dedup.ExecuteWithCache(pop[i].Weights, e.cache, fitness)
				pop[i].evaluated = true
			}
		}
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for i := range pop {
		if pop[i].evaluated {
			continue
		}
		g.Go(func() error {
			pop[i].Fitness = e.dedup.ExecuteWithCache(pop[i].Weights, e.cache, fitness)
			pop[i].evaluated = true
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) notify(ctx context.Context, n int, pop Population, bestEver Individual, before cache.DedupStats) {
	if len(e.observers) == 0 {
		return
	}
	best, _ := pop.Best()
	now := e.dedup.Stats()
	g := Generation{
		Number:      n,
		Best:        best.Clone(),
		BestEver:    bestEver.Clone(),
		Stats:       pop.Stats(),
		Population:  pop.Clone(),
		Evaluations: now.Evaluations - before.Evaluations,
		CacheHits:   now.CacheHits - before.CacheHits,
	}
	for _, o := range e.observers {
		o.OnGeneration(ctx, g)
	}
}
