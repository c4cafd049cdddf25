package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-sl-optimizer/cmd/common"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/reporting"
)

var (
	simData   common.DataFlags
	simSim    common.SimulationFlags
	simOutput common.OutputFlags
	simParams backtest.Params
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay every trade under one overlay tuple",
	Long: `Replays the selected trades with a single (SL, BE, TS trigger, TS step)
tuple and prints each trade's exit next to the original exit. A value of 0
disables that part of the overlay.

Examples:
  backtest simulate --candles data/BTCUSDT_1m.csv --trades data/trades.csv --sl 1.5
  backtest simulate -c optimizer.yaml --sl 2 --be 1 --ts-trigger 3 --ts-step 0.5 -f console,csv`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simData.Register(simulateCmd)
	simSim.Register(simulateCmd)
	simOutput.Register(simulateCmd)

	fs := simulateCmd.Flags()
	fs.Float64Var(&simParams.SL, "sl", 0, "Stop-loss distance from entry, in percent")
	fs.Float64Var(&simParams.BE, "be", 0, "Profit in percent that moves the stop to break-even")
	fs.Float64Var(&simParams.TSTrigger, "ts-trigger", 0, "Profit in percent that arms the trailing stop")
	fs.Float64Var(&simParams.TSStep, "ts-step", 0, "Trailing distance from the best price, in percent")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	v := common.NewFlagValidator().
		ValidateNonNegative("--sl", simParams.SL).
		ValidateNonNegative("--be", simParams.BE).
		ValidateNonNegative("--ts-trigger", simParams.TSTrigger).
		ValidateNonNegative("--ts-step", simParams.TSStep)
	if simParams.TSTrigger > 0 && simParams.TSStep == 0 {
		v.AddError("--ts-step is required when --ts-trigger is set")
	}
	if err := v.GetError(); err != nil {
		return err
	}

	cfg, _, err := loadConfig(cmd, true, func(cfg *config.OptimizerConfig) error {
		simData.Apply(cmd, cfg)
		simSim.Apply(cmd, cfg)
		simOutput.Apply(cmd, cfg)
		return nil
	})
	if err != nil {
		return err
	}

	closeLog, err := common.SetupLogging(cfg, "simulator")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	result, err := orchestrator.NewOrchestrator().Simulate(ctx, cfg, simParams)
	if err != nil {
		return err
	}

	manager := reporting.NewReportingManager(reporting.NewReportingConfig(cfg))
	dir := manager.RunDir(fmt.Sprintf("simulation_%s", time.Now().Format("20060102_150405")))
	if err := manager.ReportSimulation(result, dir); err != nil {
		return err
	}
	log.Info().Str("params", result.Params.String()).
		Float64("pnl_total", result.Metrics.PnLTotal).
		Float64("improvement", result.Improvement()).
		Msg("🏁 simulation finished")
	return nil
}
