package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

func newTestManager(env map[string]string) *OptimizerConfigManager {
	m := NewOptimizerConfigManager("")
	m.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return m
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const yamlConfig = `
data:
  candles_file: candles.csv
  trades_file: trades.csv
  timezone_reference: Europe/Berlin
selection:
  trade_selection_mode: random
  start_trade: 5
  max_trades: 100
simulation:
  slippage: 0.05
search:
  mode: bayesian
  optimization_objective: sharpe
  optuna_trials: 80
  workers: 4
  evaluation_timeout: 30s
  selected_params: [sl, ts]
  random_seed: 42
ranges:
  sl: {min: 1, max: 3, step: 0.5}
output:
  formats: [json, db]
  database_path: results/test.db
`

// TestLoadConfig_YAML tests that a YAML file overrides defaults and converts
func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "optimizer.yaml", yamlConfig)
	cfg, err := newTestManager(nil).LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "candles.csv", cfg.Data.CandlesFile)
	assert.Equal(t, 30*time.Second, cfg.Search.EvaluationTimeout.Duration)
	assert.Equal(t, DefaultDojiRatio, cfg.Simulation.DojiRatio)
	assert.Equal(t, DefaultTopN, cfg.Search.TopN)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	sel, err := cfg.TradeSelection()
	require.NoError(t, err)
	assert.Equal(t, data.Selection{Mode: data.SelectRandom, Offset: 5, Limit: 100, Seed: 42}, sel)

	space, err := cfg.SearchSpace()
	require.NoError(t, err)
	assert.Equal(t, optimization.ParamRange{Min: 1, Max: 3, Step: 0.5}, space.SL)
	assert.Equal(t, optimization.DefaultSearchSpace().BE, space.BE)
	assert.Equal(t, optimization.ParamSelection{SL: true, TS: true}, space.Selected)

	opts, err := cfg.SearchOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 80, opts.Trials)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, int64(42), opts.Seed)
	assert.Equal(t, 30*time.Second, opts.Timeout)

	assert.Equal(t, 0.05, cfg.SimulatorOptions().Slippage)
	assert.True(t, cfg.HasFormat("DB"))
	assert.False(t, cfg.HasFormat("excel"))
}

// TestLoadConfig_JSONAndEnv tests JSON decoding with environment overrides on top
func TestLoadConfig_JSONAndEnv(t *testing.T) {
	path := writeFile(t, "optimizer.json", `{
		"data": {"candles_file": "c.csv", "trades_file": "t.csv"},
		"search": {"mode": "grid", "workers": 2, "evaluation_timeout": 5}
	}`)
	cfg, err := newTestManager(map[string]string{
		"OPTIMIZER_WORKERS":     "8",
		"OPTIMIZER_MODE":        "genetic",
		"OPTIMIZER_PARAMS":      "sl,be",
		"OPTIMIZER_SLIPPAGE":    "0.1",
		"OPTIMIZER_TRADES_FILE": " other.csv ",
	}).LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Search.Workers)
	assert.Equal(t, "genetic", cfg.Search.Mode)
	assert.Equal(t, []string{"sl", "be"}, cfg.Search.SelectedParams)
	assert.Equal(t, 0.1, cfg.Simulation.Slippage)
	assert.Equal(t, "other.csv", cfg.Data.TradesFile)
	assert.Equal(t, 5*time.Second, cfg.Search.EvaluationTimeout.Duration)
}

// TestLoadConfig_BadEnv tests that unparsable overrides are configuration errors
func TestLoadConfig_BadEnv(t *testing.T) {
	_, err := newTestManager(map[string]string{
		"OPTIMIZER_CANDLES_FILE": "c.csv",
		"OPTIMIZER_TRADES_FILE":  "t.csv",
		"OPTIMIZER_WORKERS":      "many",
	}).LoadConfig("")
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryConfiguration))
	assert.Contains(t, err.Error(), "OPTIMIZER_WORKERS")
}

// TestLoadConfig_MissingFile tests unreadable config files
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := newTestManager(nil).LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryConfiguration))
}

// TestValidate_CollectsAllProblems tests that validation reports every problem
func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulation.Slippage = -1
	cfg.Search.Mode = "annealing"
	cfg.Search.Objective = "luck"
	cfg.Ranges.SL = optimization.ParamRange{Min: 3, Max: 1, Step: 0.5}
	cfg.Output.Formats = []string{"pdf"}

	err := NewOptimizerValidator().Validate(cfg)
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryConfiguration))

	var problems ValidationErrors
	require.True(t, errors.As(err, &problems))
	// two missing inputs plus five injected problems
	assert.Len(t, problems, 7)
}

// TestValidate_Genetic tests genetic settings are only checked in genetic mode
func TestValidate_Genetic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Genetic.MutationRate = 2
	v := &OptimizerValidator{}
	assert.NoError(t, v.Validate(cfg))

	cfg.Search.Mode = "genetic"
	assert.Error(t, v.Validate(cfg))
}

// TestValidate_ServeWithoutInputs tests that input files are optional when not required
func TestValidate_ServeWithoutInputs(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, (&OptimizerValidator{}).Validate(cfg))
	assert.Error(t, NewOptimizerValidator().Validate(cfg))
}

// TestSaveConfig_RoundTrip tests YAML and JSON output reload identically
func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.CandlesFile = "c.csv"
	cfg.Data.TradesFile = "t.csv"
	cfg.Search.EvaluationTimeout = Duration{90 * time.Second}
	m := newTestManager(nil)

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		require.NoError(t, m.SaveConfig(cfg, path))

		loaded, err := m.LoadConfig(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, loaded, name)
	}
}

// TestDuration tests the accepted duration encodings
func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`2.5`), &d))
	assert.Equal(t, 2500*time.Millisecond, d.Duration)

	require.NoError(t, yaml.Unmarshal([]byte(`"45"`), &d))
	assert.Equal(t, 45*time.Second, d.Duration)

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))

	out, err := json.Marshal(Duration{time.Minute})
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(out))
}
