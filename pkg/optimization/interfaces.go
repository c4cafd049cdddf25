package optimization

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// Package optimization searches the (SL, BE, TS trigger, TS step) space
// with grid, Bayesian and genetic drivers that share one evaluator.

// Mode selects the search driver
type Mode string

const (
	ModeGrid     Mode = "grid"
	ModeBayesian Mode = "bayesian"
	ModeGenetic  Mode = "genetic"
)

// ParseMode parses a search mode, defaulting empty input to grid
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGrid:
		return ModeGrid, nil
	case ModeBayesian, "optuna", "bayes":
		return ModeBayesian, nil
	case ModeGenetic, "ga":
		return ModeGenetic, nil
	}
	return "", fmt.Errorf("unknown optimization mode %q", s)
}

// Candidate is one evaluated tuple
type Candidate struct {
	Rank    int                        `json:"rank"`
	Params  backtest.Params            `json:"params"`
	Score   float64                    `json:"score"`
	Metrics *backtest.PortfolioMetrics `json:"metrics"`
}

// SearchOptions configures a search driver
type SearchOptions struct {
	Objective Objective
	Workers   int
	Timeout   time.Duration
	Seed      int64
	Trials    int
	Genetic   GeneticConfig
	Tracker   *ProgressTracker
}

// SearchResult collects what a driver evaluated
type SearchResult struct {
	Mode       Mode          `json:"mode"`
	Candidates []Candidate   `json:"candidates"`
	Total      int           `json:"total"`
	Evaluated  int           `json:"evaluated"`
	Failed     int           `json:"failed"`
	Rejected   int           `json:"rejected"`
	Aborted    bool          `json:"aborted"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Searcher drives the evaluator over a search space
type Searcher interface {
	Search(ctx context.Context, evaluator backtest.Evaluator, space SearchSpace, opts SearchOptions) (*SearchResult, error)
}

// NewSearcher returns the driver for a mode
func NewSearcher(mode Mode) (Searcher, error) {
	switch mode {
	case ModeGrid, "":
		return &GridSearcher{}, nil
	case ModeBayesian:
		return &BayesianSearcher{}, nil
	case ModeGenetic:
		return &GeneticSearcher{}, nil
	}
	return nil, fmt.Errorf("unknown optimization mode %q", mode)
}

// Individual represents a candidate solution in the genetic algorithm
type Individual interface {
	GetParams() backtest.Params
	SetParams(p backtest.Params)
	GetFitness() float64
	SetFitness(fitness float64)
	GetResults() *backtest.PortfolioMetrics
	SetResults(results *backtest.PortfolioMetrics)
	Evaluated() bool
	Copy() Individual
}

// Population represents a collection of individuals
type Population interface {
	GetIndividuals() []Individual
	Size() int
	GetBest() Individual
	SetIndividuals(individuals []Individual)
}

// GeneticOperator defines interface for genetic algorithm operations
type GeneticOperator interface {
	Crossover(parent1, parent2 Individual, rate float64, rng *rand.Rand) Individual
	Mutate(individual Individual, rate float64, rng *rand.Rand)
	Select(population Population, tournamentSize int, rng *rand.Rand) Individual
}

// GeneticConfig holds the configuration for the genetic algorithm
type GeneticConfig struct {
	PopulationSize int     `json:"population_size" yaml:"population_size"`
	Generations    int     `json:"generations" yaml:"generations"`
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate"`
	CrossoverRate  float64 `json:"crossover_rate" yaml:"crossover_rate"`
	EliteSize      int     `json:"elite_size" yaml:"elite_size"`
	TournamentSize int     `json:"tournament_size" yaml:"tournament_size"`
}
