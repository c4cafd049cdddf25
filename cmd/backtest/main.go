package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-sl-optimizer/cmd/common"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
)

const appName = "backtest"

var commonFlags common.CommonFlags

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Stop-loss, break-even and trailing-stop overlay optimizer",
	Long: `Replays a strategy's closed trades on OHLCV candles with a protective
overlay (stop-loss, break-even, trailing stop) and searches for the overlay
tuple that improves the strategy the most.

Configuration is layered: defaults, then --config, then OPTIMIZER_* variables
(from the environment or --env-file), then command-line flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	commonFlags.Register(rootCmd)
}

// loadConfig layers config file, environment and the command's flags, then
// validates the result
func loadConfig(cmd *cobra.Command, requireInputs bool, apply func(*config.OptimizerConfig) error) (*config.OptimizerConfig, *common.Loader, error) {
	loader := common.NewLoader(commonFlags.EnvFile)
	cfg, err := loader.Load(commonFlags.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	commonFlags.Apply(cmd, cfg)
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, nil, err
		}
	}
	if err := loader.Validate(cfg, requireInputs); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
