package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-sl-optimizer/cmd/common"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/monitoring"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/server"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/reporting"
)

var (
	runData   common.DataFlags
	runSim    common.SimulationFlags
	runSearch common.SearchFlags
	runOutput common.OutputFlags
	runServe  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search overlay tuples and rank them against the baseline",
	Long: `Loads candles and the tradelist, replays the baseline, then searches the
(SL, BE, TS trigger, TS step) space with the configured driver and reports
the ranked candidates.

Ctrl-C stops the search early; the candidates evaluated so far are still
ranked and reported, and the run is marked aborted.

Examples:
  backtest run --candles data/BTCUSDT_1m.csv --trades data/trades.csv
  backtest run -c optimizer.yaml --mode bayesian --trials 200 -o sharpe
  backtest run -c optimizer.yaml --smart --params sl,ts -f console,json,excel
  backtest run -c optimizer.yaml --db results/optimizer.db --serve :8080`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runData.Register(runCmd)
	runSim.Register(runCmd)
	runSearch.Register(runCmd)
	runOutput.Register(runCmd)
	runCmd.Flags().StringVar(&runServe, "serve", "", "Serve progress and results over HTTP on this address while running")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, true, func(cfg *config.OptimizerConfig) error {
		runData.Apply(cmd, cfg)
		runSim.Apply(cmd, cfg)
		runOutput.Apply(cmd, cfg)
		return runSearch.Apply(cmd, cfg)
	})
	if err != nil {
		return err
	}

	closeLog, err := common.SetupLogging(cfg, "optimizer")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	store, err := common.OpenStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	manager := reporting.NewReportingManager(reporting.NewReportingConfig(cfg))
	sinks := manager.Sinks()
	if store != nil {
		sinks = append(sinks, orchestrator.NewStoreSink(store))
	}

	tracker := optimization.DefaultTracker
	health := monitoring.NewHealthChecker()
	orch := orchestrator.NewOrchestrator(
		orchestrator.WithTracker(tracker),
		orchestrator.WithHealth(health),
		orchestrator.WithSinks(sinks...),
	)

	if runServe != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		srv := server.New(server.Config{Addr: runServe, Debug: cfg.Logging.Level == "debug"}, tracker, store, health)
		go func() {
			if err := srv.Run(srvCtx); err != nil {
				log.Error().Err(err).Msg("❌ progress server stopped")
			}
		}()
	}

	result, err := orch.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if result.Aborted {
		log.Warn().Int("evaluated", result.Evaluated).Int("total", result.TotalCombinations).
			Msg("⚠️ search interrupted, partial results reported")
	}
	log.Info().Str("run_id", result.RunID).Str("elapsed", common.FormatDuration(result.Elapsed())).
		Msg("🏁 optimization finished")
	return nil
}
