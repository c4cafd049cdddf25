package config

// Package config loads, validates and saves optimizer configuration

// ConfigManager handles loading, validation and saving of configurations
type ConfigManager interface {
	// LoadConfig builds a configuration from defaults, an optional file and
	// the environment
	LoadConfig(configFile string) (*OptimizerConfig, error)

	// ValidateConfig validates a configuration
	ValidateConfig(cfg *OptimizerConfig) error

	// SaveConfig saves configuration to file
	SaveConfig(cfg *OptimizerConfig, path string) error
}

// Validator interface for configuration validation
type Validator interface {
	Validate(cfg *OptimizerConfig) error
}

// Common configuration constants
const (
	// Default parameter values
	DefaultTimezone     = "UTC"
	DefaultObjective    = "pnl"
	DefaultMode         = "grid"
	DefaultTopN         = 10
	DefaultDojiRatio    = 0.1
	DefaultMaxGridSize  = 5000
	DefaultSelectionMod = "sequence"

	// Validation limits
	MaxSlippage       = 5.0 // percent
	MaxWorkers        = 1024
	MaxOverlayPercent = 100.0

	// File and directory constants
	DefaultEnvFile    = ".env"
	ResultsDir        = "results"
	DefaultDBFile     = "results/optimizer.db"
	BestParamsFile    = "best.json"
	RankingFile       = "ranking.csv"
	TradesWorkbook    = "trades.xlsx"
	DefaultServerAddr = ":8080"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "OPTIMIZER_"
)
