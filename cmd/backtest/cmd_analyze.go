package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-sl-optimizer/cmd/common"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/reporting"
)

var (
	analyzeData       common.DataFlags
	analyzeOutput     common.OutputFlags
	analyzeSaveRanges string
	analyzeMaxGrid    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Derive smart overlay ranges from trade excursions",
	Long: `Measures each trade's maximum run-up and drawdown (from the tradelist's
excursion columns, or from the candles when they are missing) and derives
conservative, balanced and aggressive ranges for SL, BE and TS.

The balanced profile can be written back into a config file with
--save-ranges and then searched with "backtest run".

Examples:
  backtest analyze --candles data/BTCUSDT_1m.csv --trades data/trades.csv
  backtest analyze -c optimizer.yaml --save-ranges optimizer.smart.yaml`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeData.Register(analyzeCmd)
	analyzeOutput.Register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeSaveRanges, "save-ranges", "", "Write the config with the balanced ranges to this file")
	analyzeCmd.Flags().IntVar(&analyzeMaxGrid, "max-grid", 0, "Grid size ceiling used for the efficiency estimate")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, loader, err := loadConfig(cmd, true, func(cfg *config.OptimizerConfig) error {
		analyzeData.Apply(cmd, cfg)
		analyzeOutput.Apply(cmd, cfg)
		if cmd.Flags().Changed("max-grid") {
			cfg.Search.MaxGridSize = analyzeMaxGrid
		}
		return nil
	})
	if err != nil {
		return err
	}

	closeLog, err := common.SetupLogging(cfg, "analyzer")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	result, err := orchestrator.NewOrchestrator().Analyze(ctx, cfg)
	if err != nil {
		return err
	}

	manager := reporting.NewReportingManager(reporting.NewReportingConfig(cfg))
	if err := manager.ReportAnalysis(result, manager.RunDir("analysis")); err != nil {
		return err
	}

	if analyzeSaveRanges == "" {
		return nil
	}
	if result.Export == nil {
		return fmt.Errorf("analysis produced no ranges to save")
	}
	cfg.SetSearchSpace(result.Export.Space())
	cfg.Search.SmartRanges = false
	if err := loader.Save(cfg, analyzeSaveRanges); err != nil {
		return err
	}
	log.Info().Str("file", analyzeSaveRanges).Msg("💾 smart ranges saved")
	return nil
}
