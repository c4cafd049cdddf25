package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
)

// CommonFlags contains flags shared by every command
type CommonFlags struct {
	ConfigFile string
	EnvFile    string
	LogLevel   string
	LogDir     string
}

// Register binds the common flags as persistent flags of the root command
func (f *CommonFlags) Register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.ConfigFile, "config", "c", "", "Config file (YAML or JSON)")
	pf.StringVar(&f.EnvFile, "env-file", ".env", "Environment file with OPTIMIZER_* overrides")
	pf.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.LogDir, "log-dir", "", "Directory for daily log files")
}

// Apply copies changed common flags into the configuration
func (f *CommonFlags) Apply(cmd *cobra.Command, cfg *config.OptimizerConfig) {
	if changed(cmd, "log-level") {
		cfg.Logging.Level = f.LogLevel
	}
	if changed(cmd, "log-dir") {
		cfg.Logging.Dir = f.LogDir
	}
}

// DataFlags selects the input files and the trades to replay
type DataFlags struct {
	CandlesFile string
	TradesFile  string
	Timezone    string
	Selection   string
	StartTrade  int
	MaxTrades   int
	Seed        int64
}

// Register binds the data flags to cmd
func (f *DataFlags) Register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.CandlesFile, "candles", "", "OHLCV candles CSV")
	fs.StringVar(&f.TradesFile, "trades", "", "Tradelist CSV (entry/exit rows)")
	fs.StringVar(&f.Timezone, "timezone", "", "Reference timezone, e.g. UTC or Europe/Berlin")
	fs.StringVar(&f.Selection, "selection", "", "Trade selection mode: sequence, time, random")
	fs.IntVar(&f.StartTrade, "start-trade", 0, "1-based first trade; negative keeps the last N")
	fs.IntVar(&f.MaxTrades, "max-trades", 0, "Maximum trades to replay (0 = all)")
	fs.Int64Var(&f.Seed, "seed", 0, "Random seed for selection and stochastic searches")
}

// Apply copies changed data flags into the configuration
func (f *DataFlags) Apply(cmd *cobra.Command, cfg *config.OptimizerConfig) {
	if changed(cmd, "candles") {
		cfg.Data.CandlesFile = f.CandlesFile
	}
	if changed(cmd, "trades") {
		cfg.Data.TradesFile = f.TradesFile
	}
	if changed(cmd, "timezone") {
		cfg.Data.Timezone = f.Timezone
	}
	if changed(cmd, "selection") {
		cfg.Selection.Mode = f.Selection
	}
	if changed(cmd, "start-trade") {
		cfg.Selection.StartTrade = f.StartTrade
	}
	if changed(cmd, "max-trades") {
		cfg.Selection.MaxTrades = f.MaxTrades
	}
	if changed(cmd, "seed") {
		cfg.Search.RandomSeed = f.Seed
	}
}

// SimulationFlags tunes the candle replay
type SimulationFlags struct {
	Slippage        float64
	DojiRatio       float64
	BreakEvenOffset float64
}

// Register binds the simulation flags to cmd
func (f *SimulationFlags) Register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.Slippage, "slippage", 0, "Adverse slippage on overlay exits, in percent")
	fs.Float64Var(&f.DojiRatio, "doji-ratio", config.DefaultDojiRatio, "Body/range ratio below which a bar is a doji")
	fs.Float64Var(&f.BreakEvenOffset, "be-offset", 0, "Offset from entry of the break-even stop, in percent")
}

// Apply copies changed simulation flags into the configuration
func (f *SimulationFlags) Apply(cmd *cobra.Command, cfg *config.OptimizerConfig) {
	if changed(cmd, "slippage") {
		cfg.Simulation.Slippage = f.Slippage
	}
	if changed(cmd, "doji-ratio") {
		cfg.Simulation.DojiRatio = f.DojiRatio
	}
	if changed(cmd, "be-offset") {
		cfg.Simulation.BreakEvenOffset = f.BreakEvenOffset
	}
}

// SearchFlags configures the optimization drivers
type SearchFlags struct {
	Mode        string
	Objective   string
	Trials      int
	Workers     int
	Params      []string
	SmartRanges bool
	TopN        int
	MaxGridSize int
	Timeout     string
}

// Register binds the search flags to cmd
func (f *SearchFlags) Register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.Mode, "mode", "m", "", "Search mode: grid, bayesian, genetic")
	fs.StringVarP(&f.Objective, "objective", "o", "", "Ranking objective: pnl, winrate, pf, sharpe, recovery, drawdown")
	fs.IntVar(&f.Trials, "trials", 0, "Trials for the bayesian search")
	fs.IntVarP(&f.Workers, "workers", "w", 0, "Parallel evaluation workers")
	fs.StringSliceVarP(&f.Params, "params", "p", nil, "Parameter families to optimize: sl, be, ts")
	fs.BoolVar(&f.SmartRanges, "smart", false, "Derive ranges from trade excursions before searching")
	fs.IntVar(&f.TopN, "top", 0, "Candidates to report")
	fs.IntVar(&f.MaxGridSize, "max-grid", 0, "Grid size ceiling; larger grids are coarsened")
	fs.StringVar(&f.Timeout, "eval-timeout", "", "Per-evaluation timeout, e.g. 30s")
}

// Apply copies changed search flags into the configuration
func (f *SearchFlags) Apply(cmd *cobra.Command, cfg *config.OptimizerConfig) error {
	if changed(cmd, "mode") {
		cfg.Search.Mode = f.Mode
	}
	if changed(cmd, "objective") {
		cfg.Search.Objective = f.Objective
	}
	if changed(cmd, "trials") {
		cfg.Search.Trials = f.Trials
	}
	if changed(cmd, "workers") {
		cfg.Search.Workers = f.Workers
	}
	if changed(cmd, "params") {
		cfg.Search.SelectedParams = f.Params
	}
	if changed(cmd, "smart") {
		cfg.Search.SmartRanges = f.SmartRanges
	}
	if changed(cmd, "top") {
		cfg.Search.TopN = f.TopN
	}
	if changed(cmd, "max-grid") {
		cfg.Search.MaxGridSize = f.MaxGridSize
	}
	if changed(cmd, "eval-timeout") {
		d, err := config.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("invalid --eval-timeout: %w", err)
		}
		cfg.Search.EvaluationTimeout = d
	}
	return nil
}

// OutputFlags selects result formats and destinations
type OutputFlags struct {
	Formats      []string
	Dir          string
	DatabasePath string
}

// Register binds the output flags to cmd
func (f *OutputFlags) Register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVarP(&f.Formats, "format", "f", nil, "Outputs: console, json, csv, excel, db")
	fs.StringVar(&f.Dir, "out", "", "Results directory")
	fs.StringVar(&f.DatabasePath, "db", "", "SQLite results database")
}

// Apply copies changed output flags into the configuration. Naming a
// database enables the db output.
func (f *OutputFlags) Apply(cmd *cobra.Command, cfg *config.OptimizerConfig) {
	if changed(cmd, "format") {
		cfg.Output.Formats = f.Formats
	}
	if changed(cmd, "out") {
		cfg.Output.Dir = f.Dir
	}
	if changed(cmd, "db") {
		cfg.Output.DatabasePath = f.DatabasePath
		if !cfg.HasFormat("db") {
			cfg.Output.Formats = append(cfg.Output.Formats, "db")
		}
	}
}

func changed(cmd *cobra.Command, name string) bool {
	fl := cmd.Flags().Lookup(name)
	return fl != nil && fl.Changed
}

// FlagValidator provides flag validation utilities
type FlagValidator struct {
	errors []string
}

// NewFlagValidator creates a new flag validator
func NewFlagValidator() *FlagValidator {
	return &FlagValidator{
		errors: make([]string, 0),
	}
}

// ValidateNonNegative validates that a float flag is not negative
func (v *FlagValidator) ValidateNonNegative(name string, value float64) *FlagValidator {
	if value < 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be non-negative, got: %.4f", name, value))
	}
	return v
}

// ValidateInt validates an int flag value
func (v *FlagValidator) ValidateInt(name string, value int, min, max int) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d, got: %d", name, min, max, value))
	}
	return v
}

// ValidateChoice validates that a string is one of the allowed choices
func (v *FlagValidator) ValidateChoice(name, value string, choices []string) *FlagValidator {
	for _, choice := range choices {
		if value == choice {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got: %s", name, strings.Join(choices, ", "), value))
	return v
}

// ValidateFile validates that a file exists
func (v *FlagValidator) ValidateFile(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		v.errors = append(v.errors, fmt.Sprintf("%s file does not exist: %s", name, path))
	}
	return v
}

// AddError adds a custom validation error
func (v *FlagValidator) AddError(message string) *FlagValidator {
	v.errors = append(v.errors, message)
	return v
}

// HasErrors returns true if there are validation errors
func (v *FlagValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetErrors returns all validation errors
func (v *FlagValidator) GetErrors() []string {
	return v.errors
}

// GetError returns a formatted error message with all validation errors
func (v *FlagValidator) GetError() error {
	if len(v.errors) == 0 {
		return nil
	}

	if len(v.errors) == 1 {
		return fmt.Errorf("validation error: %s", v.errors[0])
	}

	return fmt.Errorf("validation errors:\n  - %s", strings.Join(v.errors, "\n  - "))
}
