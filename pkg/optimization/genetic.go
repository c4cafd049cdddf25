package optimization

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// GA defaults
const (
	GAPopulationSize = 24
	GAGenerations    = 15
	GAMutationRate   = 0.2
	GACrossoverRate  = 0.85
	GAEliteSize      = 4
	GATournamentSize = 2
	GAReportInterval = 3
)

// DefaultGeneticConfig returns the default genetic algorithm settings
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize: GAPopulationSize,
		Generations:    GAGenerations,
		MutationRate:   GAMutationRate,
		CrossoverRate:  GACrossoverRate,
		EliteSize:      GAEliteSize,
		TournamentSize: GATournamentSize,
	}
}

// withDefaults fills zero fields from the defaults
func (c GeneticConfig) withDefaults() GeneticConfig {
	d := DefaultGeneticConfig()
	if c.PopulationSize <= 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.Generations <= 0 {
		c.Generations = d.Generations
	}
	if c.MutationRate <= 0 {
		c.MutationRate = d.MutationRate
	}
	if c.CrossoverRate <= 0 {
		c.CrossoverRate = d.CrossoverRate
	}
	if c.EliteSize < 0 || c.EliteSize >= c.PopulationSize {
		c.EliteSize = d.EliteSize
		if c.EliteSize >= c.PopulationSize {
			c.EliteSize = c.PopulationSize / 4
		}
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = d.TournamentSize
	}
	return c
}

// GeneticSearcher evolves tuples with tournament selection, crossover,
// mutation and elitism. Each distinct tuple is evaluated once per run.
type GeneticSearcher struct{}

type gaRun struct {
	evaluator backtest.Evaluator
	opts      SearchOptions
	cache     map[string]backtest.EvaluationResult
	result    *SearchResult
}

// Search runs the genetic algorithm seeded by opts.Seed
func (g *GeneticSearcher) Search(ctx context.Context, evaluator backtest.Evaluator, space SearchSpace, opts SearchOptions) (*SearchResult, error) {
	if err := space.Validate(); err != nil {
		return nil, opterrors.NewConfigurationError("genetic_search", "validate_space", err.Error())
	}

	start := time.Now()
	cfg := opts.Genetic.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))
	op := NewParamGeneticOperator(space)

	run := &gaRun{
		evaluator: evaluator,
		opts:      opts,
		cache:     make(map[string]backtest.EvaluationResult),
		result:    &SearchResult{Mode: ModeGenetic, Total: cfg.PopulationSize * cfg.Generations},
	}
	opts.Tracker.SetTotal(run.result.Total)

	individuals := make([]Individual, cfg.PopulationSize)
	for i := range individuals {
		individuals[i] = NewParamIndividual(op.Random(rng))
	}
	population := NewParamPopulation(individuals)

	log.Info().Int("population", cfg.PopulationSize).Int("generations", cfg.Generations).
		Str("objective", string(opts.Objective)).Msg("🧬 genetic search started")

	for gen := 0; gen < cfg.Generations; gen++ {
		if ctx.Err() != nil {
			run.result.Aborted = true
			break
		}

		run.evaluatePopulation(ctx, population)
		population.SortByFitness()

		if gen%GAReportInterval == 0 || gen == cfg.Generations-1 {
			best := population.GetBest()
			log.Info().Int("generation", gen+1).
				Float64("best", best.GetFitness()).
				Float64("average", population.AverageFitness()).
				Str("params", best.GetParams().String()).
				Msg("🧬 generation complete")
		}

		if gen < cfg.Generations-1 {
			population.SetIndividuals(nextGeneration(population, op, cfg, rng))
		}
	}

	run.result.Aborted = run.result.Aborted || (ctx.Err() != nil && run.result.Evaluated < run.result.Total)
	run.result.Elapsed = time.Since(start)
	return run.result, nil
}

// evaluatePopulation scores every unevaluated individual, evaluating
// unseen tuples in parallel
func (r *gaRun) evaluatePopulation(ctx context.Context, population *ParamPopulation) {
	var pending []backtest.Params
	queued := make(map[string]bool)
	for _, ind := range population.GetIndividuals() {
		if ind.Evaluated() {
			continue
		}
		p := ind.GetParams()
		if p.Validate() != nil {
			continue
		}
		key := p.Key()
		if _, ok := r.cache[key]; ok || queued[key] {
			continue
		}
		queued[key] = true
		pending = append(pending, p)
	}

	for _, res := range backtest.EvaluateBatch(ctx, r.evaluator, pending, r.opts.Workers, r.opts.Timeout) {
		if res.Skipped() {
			continue
		}
		r.cache[res.Params.Key()] = res
		collect(r.result, res)
	}

	for _, ind := range population.GetIndividuals() {
		if !ind.Evaluated() && !r.score(ind) {
			continue
		}
		r.result.Evaluated++
		r.opts.Tracker.Increment()
	}
}

// score sets the fitness of an unevaluated individual. It reports false
// when the individual's tuple was skipped by cancellation.
func (r *gaRun) score(ind Individual) bool {
	p := ind.GetParams()
	if p.Validate() != nil {
		r.result.Rejected++
		ind.SetFitness(r.penalty())
		return true
	}
	res, ok := r.cache[p.Key()]
	if !ok {
		return false
	}
	if res.Failed() {
		ind.SetFitness(r.penalty())
		return true
	}
	ind.SetResults(res.Metrics)
	ind.SetFitness(r.fitness(res.Metrics))
	return true
}

// fitness is the objective oriented so that higher is better
func (r *gaRun) fitness(m *backtest.PortfolioMetrics) float64 {
	v := backtest.SanitizeFloat(ObjectiveValue(m, r.opts.Objective))
	if r.opts.Objective.Minimize() {
		return -v
	}
	return v
}

func (r *gaRun) penalty() float64 {
	return -backtest.InfSentinel
}

// nextGeneration keeps the elite and fills the rest with offspring
func nextGeneration(population *ParamPopulation, op GeneticOperator, cfg GeneticConfig, rng *rand.Rand) []Individual {
	next := population.GetElite(cfg.EliteSize)
	for len(next) < population.Size() {
		parent1 := op.Select(population, cfg.TournamentSize, rng)
		parent2 := op.Select(population, cfg.TournamentSize, rng)

		child := op.Crossover(parent1, parent2, cfg.CrossoverRate, rng)
		op.Mutate(child, cfg.MutationRate, rng)
		next = append(next, child)
	}
	return next
}
