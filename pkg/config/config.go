package config

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

// OptimizerConfig is the complete configuration of an optimizer run
type OptimizerConfig struct {
	Data       DataConfig       `json:"data" yaml:"data"`
	Selection  SelectionConfig  `json:"selection" yaml:"selection"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Ranges     RangesConfig     `json:"ranges" yaml:"ranges"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DataConfig locates the input files
type DataConfig struct {
	CandlesFile string `json:"candles_file" yaml:"candles_file"`
	TradesFile  string `json:"trades_file" yaml:"trades_file"`
	Timezone    string `json:"timezone_reference" yaml:"timezone_reference"`
}

// SelectionConfig picks the trades to replay
type SelectionConfig struct {
	Mode       string `json:"trade_selection_mode" yaml:"trade_selection_mode"`
	StartTrade int    `json:"start_trade" yaml:"start_trade"`
	MaxTrades  int    `json:"max_trades" yaml:"max_trades"`
}

// SimulationConfig tunes the replay
type SimulationConfig struct {
	Slippage        float64 `json:"slippage" yaml:"slippage"`
	DojiRatio       float64 `json:"doji_ratio" yaml:"doji_ratio"`
	BreakEvenOffset float64 `json:"break_even_offset" yaml:"break_even_offset"`
}

// SearchConfig drives the parameter search
type SearchConfig struct {
	Mode              string                     `json:"mode" yaml:"mode"`
	Objective         string                     `json:"optimization_objective" yaml:"optimization_objective"`
	Trials            int                        `json:"optuna_trials" yaml:"optuna_trials"`
	Workers           int                        `json:"workers" yaml:"workers"`
	EvaluationTimeout Duration                   `json:"evaluation_timeout" yaml:"evaluation_timeout"`
	SelectedParams    []string                   `json:"selected_params" yaml:"selected_params"`
	RandomSeed        int64                      `json:"random_seed" yaml:"random_seed"`
	TopN              int                        `json:"top_n" yaml:"top_n"`
	MaxGridSize       int                        `json:"max_grid_size" yaml:"max_grid_size"`
	SmartRanges       bool                       `json:"smart_ranges" yaml:"smart_ranges"`
	Genetic           optimization.GeneticConfig `json:"genetic" yaml:"genetic"`
}

// RangesConfig holds the four parameter ranges
type RangesConfig struct {
	SL        optimization.ParamRange `json:"sl" yaml:"sl"`
	BE        optimization.ParamRange `json:"be" yaml:"be"`
	TSTrigger optimization.ParamRange `json:"ts_trigger" yaml:"ts_trigger"`
	TSStep    optimization.ParamRange `json:"ts_step" yaml:"ts_step"`
}

// OutputConfig selects the result sinks
type OutputConfig struct {
	Dir          string   `json:"dir" yaml:"dir"`
	Formats      []string `json:"formats" yaml:"formats"`
	DatabasePath string   `json:"database_path" yaml:"database_path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoggingConfig configures zerolog output
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level"`
	Dir     string `json:"dir" yaml:"dir"`
	Console bool   `json:"console" yaml:"console"`
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *OptimizerConfig {
	space := optimization.DefaultSearchSpace()
	return &OptimizerConfig{
		Data: DataConfig{Timezone: DefaultTimezone},
		Selection: SelectionConfig{
			Mode: DefaultSelectionMod,
		},
		Simulation: SimulationConfig{DojiRatio: DefaultDojiRatio},
		Search: SearchConfig{
			Mode:           DefaultMode,
			Objective:      DefaultObjective,
			Trials:         optimization.DefaultTrials,
			Workers:        runtime.NumCPU(),
			SelectedParams: []string{"sl", "be", "ts"},
			TopN:           DefaultTopN,
			MaxGridSize:    DefaultMaxGridSize,
			Genetic:        optimization.DefaultGeneticConfig(),
		},
		Ranges: RangesConfig{
			SL:        space.SL,
			BE:        space.BE,
			TSTrigger: space.TSTrigger,
			TSStep:    space.TSStep,
		},
		Output: OutputConfig{
			Dir:     ResultsDir,
			Formats: []string{"console", "json", "csv"},
		},
		Server:  ServerConfig{Addr: DefaultServerAddr},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// Location resolves the reference timezone
func (c *OptimizerConfig) Location() (*time.Location, error) {
	if c.Data.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Data.Timezone)
}

// TradeSelection converts the selection options
func (c *OptimizerConfig) TradeSelection() (data.Selection, error) {
	mode, err := data.ParseSelectionMode(c.Selection.Mode)
	if err != nil {
		return data.Selection{}, err
	}
	return data.Selection{
		Mode:   mode,
		Offset: c.Selection.StartTrade,
		Limit:  c.Selection.MaxTrades,
		Seed:   c.Search.RandomSeed,
	}, nil
}

// SimulatorOptions converts the simulation options
func (c *OptimizerConfig) SimulatorOptions() backtest.SimulatorOptions {
	return backtest.SimulatorOptions{
		Slippage:        c.Simulation.Slippage,
		DojiRatio:       c.Simulation.DojiRatio,
		BreakEvenOffset: c.Simulation.BreakEvenOffset,
	}
}

// SearchSpace builds the search space from the ranges and selected families
func (c *OptimizerConfig) SearchSpace() (optimization.SearchSpace, error) {
	sel, err := optimization.ParseParamSelection(c.Search.SelectedParams)
	if err != nil {
		return optimization.SearchSpace{}, err
	}
	return optimization.SearchSpace{
		SL:        c.Ranges.SL,
		BE:        c.Ranges.BE,
		TSTrigger: c.Ranges.TSTrigger,
		TSStep:    c.Ranges.TSStep,
		Selected:  sel,
	}, nil
}

// SetSearchSpace stores ranges, e.g. exported by the range analyzer
func (c *OptimizerConfig) SetSearchSpace(space optimization.SearchSpace) {
	c.Ranges = RangesConfig{SL: space.SL, BE: space.BE, TSTrigger: space.TSTrigger, TSStep: space.TSStep}
}

// SearchOptions converts the search options
func (c *OptimizerConfig) SearchOptions(tracker *optimization.ProgressTracker) (optimization.SearchOptions, error) {
	obj, err := optimization.ParseObjective(c.Search.Objective)
	if err != nil {
		return optimization.SearchOptions{}, err
	}
	return optimization.SearchOptions{
		Objective: obj,
		Workers:   c.Search.Workers,
		Timeout:   c.Search.EvaluationTimeout.Duration,
		Seed:      c.Search.RandomSeed,
		Trials:    c.Search.Trials,
		Genetic:   c.Search.Genetic,
		Tracker:   tracker,
	}, nil
}

// HasFormat reports whether an output format is enabled
func (c *OptimizerConfig) HasFormat(format string) bool {
	for _, f := range c.Output.Formats {
		if strings.EqualFold(strings.TrimSpace(f), format) {
			return true
		}
	}
	return false
}

// Duration reads "30s" style strings or integer seconds from JSON and YAML
type Duration struct {
	time.Duration
}

// ParseDuration accepts Go duration strings and bare seconds
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Duration{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return Duration{d}, nil
	}
	var secs float64
	if _, err := fmt.Sscanf(s, "%g", &secs); err != nil {
		return Duration{}, fmt.Errorf("invalid duration %q", s)
	}
	return Duration{time.Duration(secs * float64(time.Second))}, nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
		return nil
	case string:
		parsed, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case nil:
		d.Duration = 0
		return nil
	}
	return fmt.Errorf("invalid duration %s", string(b))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
