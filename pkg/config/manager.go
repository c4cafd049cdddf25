package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// OptimizerConfigManager implements ConfigManager for optimizer runs
type OptimizerConfigManager struct {
	validator Validator
	envFile   string
	lookupEnv func(string) (string, bool)
}

// NewOptimizerConfigManager creates a manager that reads envFile (if it
// exists) before applying OPTIMIZER_* overrides
func NewOptimizerConfigManager(envFile string) *OptimizerConfigManager {
	return &OptimizerConfigManager{
		validator: NewOptimizerValidator(),
		envFile:   envFile,
		lookupEnv: os.LookupEnv,
	}
}

// WithValidator replaces the validator
func (m *OptimizerConfigManager) WithValidator(v Validator) *OptimizerConfigManager {
	m.validator = v
	return m
}

// LoadConfig layers defaults, the config file and environment overrides,
// then validates the result
func (m *OptimizerConfigManager) LoadConfig(configFile string) (*OptimizerConfig, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := m.loadFromFile(configFile, cfg); err != nil {
			return nil, opterrors.WrapError(err, opterrors.ErrorCategoryConfiguration, "config", "load").
				WithMessage("failed to load config file").WithContext("file", configFile)
		}
	}

	if err := m.applyEnv(cfg); err != nil {
		return nil, opterrors.WrapError(err, opterrors.ErrorCategoryConfiguration, "config", "env").
			WithMessage("invalid environment override")
	}

	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig validates a configuration
func (m *OptimizerConfigManager) ValidateConfig(cfg *OptimizerConfig) error {
	return m.validator.Validate(cfg)
}

// SaveConfig writes the configuration as YAML or JSON depending on the
// file extension
func (m *OptimizerConfigManager) SaveConfig(cfg *OptimizerConfig, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// loadFromFile decodes YAML or JSON over the defaults
func (m *OptimizerConfigManager) loadFromFile(configFile string, cfg *OptimizerConfig) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	if isYAML(configFile) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("could not parse YAML config: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("could not parse JSON config: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// envSetter applies one OPTIMIZER_* variable
type envSetter func(cfg *OptimizerConfig, value string) error

var envOverrides = map[string]envSetter{
	"CANDLES_FILE": func(c *OptimizerConfig, v string) error { c.Data.CandlesFile = v; return nil },
	"TRADES_FILE":  func(c *OptimizerConfig, v string) error { c.Data.TradesFile = v; return nil },
	"TIMEZONE":     func(c *OptimizerConfig, v string) error { c.Data.Timezone = v; return nil },
	"SELECTION":    func(c *OptimizerConfig, v string) error { c.Selection.Mode = v; return nil },
	"START_TRADE":  intSetter(func(c *OptimizerConfig, n int) { c.Selection.StartTrade = n }),
	"MAX_TRADES":   intSetter(func(c *OptimizerConfig, n int) { c.Selection.MaxTrades = n }),
	"SLIPPAGE":     floatSetter(func(c *OptimizerConfig, f float64) { c.Simulation.Slippage = f }),
	"DOJI_RATIO":   floatSetter(func(c *OptimizerConfig, f float64) { c.Simulation.DojiRatio = f }),
	"MODE":         func(c *OptimizerConfig, v string) error { c.Search.Mode = v; return nil },
	"OBJECTIVE":    func(c *OptimizerConfig, v string) error { c.Search.Objective = v; return nil },
	"TRIALS":       intSetter(func(c *OptimizerConfig, n int) { c.Search.Trials = n }),
	"WORKERS":      intSetter(func(c *OptimizerConfig, n int) { c.Search.Workers = n }),
	"TOP_N":        intSetter(func(c *OptimizerConfig, n int) { c.Search.TopN = n }),
	"SEED": func(c *OptimizerConfig, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Search.RandomSeed = n
		return nil
	},
	"EVALUATION_TIMEOUT": func(c *OptimizerConfig, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		c.Search.EvaluationTimeout = d
		return nil
	},
	"PARAMS": func(c *OptimizerConfig, v string) error {
		c.Search.SelectedParams = strings.Split(v, ",")
		return nil
	},
	"OUTPUT_DIR": func(c *OptimizerConfig, v string) error { c.Output.Dir = v; return nil },
	"FORMATS": func(c *OptimizerConfig, v string) error {
		c.Output.Formats = strings.Split(v, ",")
		return nil
	},
	"DB_PATH":     func(c *OptimizerConfig, v string) error { c.Output.DatabasePath = v; return nil },
	"SERVER_ADDR": func(c *OptimizerConfig, v string) error { c.Server.Addr = v; return nil },
	"LOG_LEVEL":   func(c *OptimizerConfig, v string) error { c.Logging.Level = v; return nil },
	"LOG_DIR":     func(c *OptimizerConfig, v string) error { c.Logging.Dir = v; return nil },
}

func intSetter(set func(*OptimizerConfig, int)) envSetter {
	return func(c *OptimizerConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(c, n)
		return nil
	}
}

func floatSetter(set func(*OptimizerConfig, float64)) envSetter {
	return func(c *OptimizerConfig, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		set(c, f)
		return nil
	}
}

// applyEnv loads the env file without overriding real environment
// variables, then applies every OPTIMIZER_* override
func (m *OptimizerConfigManager) applyEnv(cfg *OptimizerConfig) error {
	if m.envFile != "" {
		if _, err := os.Stat(m.envFile); err == nil {
			if err := godotenv.Load(m.envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", m.envFile, err)
			}
			log.Debug().Str("file", m.envFile).Msg("environment file loaded")
		}
	}
	for key, set := range envOverrides {
		value, ok := m.lookupEnv(EnvPrefix + key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := set(cfg, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, key, value, err)
		}
	}
	return nil
}
