package config

import (
	"fmt"
	"strings"
	"time"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

// ValidationErrors collects every problem found in a configuration
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("%d configuration problem(s): %s", len(v), strings.Join(v, "; "))
}

// OptimizerValidator validates optimizer configurations
type OptimizerValidator struct {
	// RequireInputs demands candle and trade files; the serve command runs
	// without them
	RequireInputs bool
}

// NewOptimizerValidator creates a validator that requires input files
func NewOptimizerValidator() *OptimizerValidator {
	return &OptimizerValidator{RequireInputs: true}
}

// Validate checks every section and reports all problems at once
func (v *OptimizerValidator) Validate(cfg *OptimizerConfig) error {
	if cfg == nil {
		return opterrors.NewConfigurationError("config", "validate", "configuration is nil")
	}
	var problems ValidationErrors
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if v.RequireInputs {
		if cfg.Data.CandlesFile == "" {
			add("data.candles_file is required")
		}
		if cfg.Data.TradesFile == "" {
			add("data.trades_file is required")
		}
	}
	if cfg.Data.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Data.Timezone); err != nil {
			add("data.timezone_reference %q is unknown", cfg.Data.Timezone)
		}
	}

	if _, err := data.ParseSelectionMode(cfg.Selection.Mode); err != nil {
		add("selection.trade_selection_mode: %v", err)
	}
	if cfg.Selection.MaxTrades < 0 {
		add("selection.max_trades must be non-negative, got %d", cfg.Selection.MaxTrades)
	}

	sim := cfg.Simulation
	if sim.Slippage < 0 || sim.Slippage > MaxSlippage {
		add("simulation.slippage must be within [0, %.1f], got %g", MaxSlippage, sim.Slippage)
	}
	if sim.DojiRatio < 0 || sim.DojiRatio >= 1 {
		add("simulation.doji_ratio must be within [0, 1), got %g", sim.DojiRatio)
	}
	if sim.BreakEvenOffset < 0 || sim.BreakEvenOffset > MaxOverlayPercent {
		add("simulation.break_even_offset must be within [0, %.0f], got %g", MaxOverlayPercent, sim.BreakEvenOffset)
	}

	search := cfg.Search
	mode, err := optimization.ParseMode(search.Mode)
	if err != nil {
		add("search.mode: %v", err)
	}
	if _, err := optimization.ParseObjective(search.Objective); err != nil {
		add("search.optimization_objective: %v", err)
	}
	if _, err := optimization.ParseParamSelection(search.SelectedParams); err != nil {
		add("search.selected_params: %v", err)
	}
	if search.Workers < 0 || search.Workers > MaxWorkers {
		add("search.workers must be within [0, %d], got %d", MaxWorkers, search.Workers)
	}
	if search.EvaluationTimeout.Duration < 0 {
		add("search.evaluation_timeout must be non-negative")
	}
	if search.TopN < 0 {
		add("search.top_n must be non-negative, got %d", search.TopN)
	}
	if search.MaxGridSize < 0 {
		add("search.max_grid_size must be non-negative, got %d", search.MaxGridSize)
	}
	if mode == optimization.ModeBayesian && search.Trials != 0 &&
		(search.Trials < optimization.MinTrials || search.Trials > optimization.MaxTrials) {
		add("search.optuna_trials must be within [%d, %d], got %d",
			optimization.MinTrials, optimization.MaxTrials, search.Trials)
	}
	if mode == optimization.ModeGenetic {
		v.validateGenetic(search.Genetic, add)
	}

	ranges := map[string]optimization.ParamRange{
		"sl": cfg.Ranges.SL, "be": cfg.Ranges.BE,
		"ts_trigger": cfg.Ranges.TSTrigger, "ts_step": cfg.Ranges.TSStep,
	}
	for _, name := range []string{"sl", "be", "ts_trigger", "ts_step"} {
		if err := ranges[name].Validate("ranges." + name); err != nil {
			add("%v", err)
		}
	}

	for _, f := range cfg.Output.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "console", "json", "csv", "excel", "db":
		default:
			add("output.formats: unknown format %q", f)
		}
	}
	if cfg.HasFormat("db") && cfg.Output.DatabasePath == "" {
		add("output.database_path is required when the db format is enabled")
	}

	if len(problems) == 0 {
		return nil
	}
	return opterrors.WrapError(problems, opterrors.ErrorCategoryConfiguration, "config", "validate").
		WithMessage("configuration validation failed")
}

func (v *OptimizerValidator) validateGenetic(g optimization.GeneticConfig, add func(string, ...interface{})) {
	if g.PopulationSize < 0 {
		add("search.genetic.population_size must be non-negative, got %d", g.PopulationSize)
	}
	if g.Generations < 0 {
		add("search.genetic.generations must be non-negative, got %d", g.Generations)
	}
	if g.MutationRate < 0 || g.MutationRate > 1 {
		add("search.genetic.mutation_rate must be within [0, 1], got %g", g.MutationRate)
	}
	if g.CrossoverRate < 0 || g.CrossoverRate > 1 {
		add("search.genetic.crossover_rate must be within [0, 1], got %g", g.CrossoverRate)
	}
	if g.PopulationSize > 0 && g.EliteSize >= g.PopulationSize {
		add("search.genetic.elite_size must be smaller than the population, got %d", g.EliteSize)
	}
	if g.TournamentSize < 0 {
		add("search.genetic.tournament_size must be non-negative, got %d", g.TournamentSize)
	}
}
