package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
)

func newCommand() (*cobra.Command, *DataFlags, *SearchFlags, *OutputFlags) {
	cmd := &cobra.Command{Use: "test"}
	df, sf, of := &DataFlags{}, &SearchFlags{}, &OutputFlags{}
	df.Register(cmd)
	sf.Register(cmd)
	of.Register(cmd)
	return cmd, df, sf, of
}

func TestFlags_OnlyChangedOverride(t *testing.T) {
	cmd, df, sf, of := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--candles", "c.csv",
		"--mode", "genetic",
		"--params", "sl,ts",
		"--eval-timeout", "45s",
		"--db", "out/runs.db",
	}))

	cfg := config.DefaultConfig()
	cfg.Data.TradesFile = "from-file.csv"
	cfg.Search.Objective = "sharpe"

	df.Apply(cmd, cfg)
	require.NoError(t, sf.Apply(cmd, cfg))
	of.Apply(cmd, cfg)

	assert.Equal(t, "c.csv", cfg.Data.CandlesFile)
	assert.Equal(t, "from-file.csv", cfg.Data.TradesFile)
	assert.Equal(t, "genetic", cfg.Search.Mode)
	assert.Equal(t, "sharpe", cfg.Search.Objective)
	assert.Equal(t, []string{"sl", "ts"}, cfg.Search.SelectedParams)
	assert.Equal(t, 45*time.Second, cfg.Search.EvaluationTimeout.Duration)
	assert.Equal(t, "out/runs.db", cfg.Output.DatabasePath)
	assert.True(t, cfg.HasFormat("db"))
	assert.True(t, cfg.HasFormat("json"))
}

func TestFlags_InvalidTimeout(t *testing.T) {
	cmd, _, sf, _ := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--eval-timeout", "soon"}))
	assert.Error(t, sf.Apply(cmd, config.DefaultConfig()))
}

func TestFlagValidator(t *testing.T) {
	v := NewFlagValidator().
		ValidateNonNegative("sl", 1).
		ValidateNonNegative("be", -0.5).
		ValidateInt("top", 0, 1, 100).
		ValidateChoice("mode", "grid", []string{"grid", "genetic"})
	require.True(t, v.HasErrors())
	assert.Len(t, v.GetErrors(), 2)
	assert.Contains(t, v.GetError().Error(), "be must be non-negative")

	assert.NoError(t, NewFlagValidator().ValidateChoice("mode", "grid", []string{"grid"}).GetError())
}

func TestLoader_DefersInputValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "optimizer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  mode: bayesian\n"), 0644))

	l := NewLoader(filepath.Join(dir, "missing.env"))
	cfg, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bayesian", cfg.Search.Mode)

	assert.Error(t, l.Validate(cfg, true))
	assert.NoError(t, l.Validate(cfg, false))

	cfg.Data.CandlesFile, cfg.Data.TradesFile = "c.csv", "t.csv"
	assert.NoError(t, l.Validate(cfg, true))
}

func TestOpenStore(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := OpenStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Output.DatabasePath = filepath.Join(t.TempDir(), "runs.db")
	store, err = OpenStore(cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
