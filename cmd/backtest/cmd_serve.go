package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-sl-optimizer/cmd/common"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/monitoring"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/server"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/storage"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

var (
	serveAddr string
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs, health and metrics over HTTP",
	Long: `Starts the HTTP API over the results database written by
"backtest run --db".

Endpoints:
  GET    /health                  health status
  GET    /metrics                 Prometheus metrics
  GET    /api/progress            progress of the current search
  GET    /api/runs                stored runs, newest first
  GET    /api/runs/:id?top=N      one run with its top candidates
  GET    /api/runs/:id/trades     trades of a rank (?rank=0 is the baseline)
  DELETE /api/runs/:id            delete a run

Examples:
  backtest serve
  backtest serve --addr :9090 --db results/optimizer.db`,
	RunE: runServeCmd,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite results database")
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, false, func(cfg *config.OptimizerConfig) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("db") {
			cfg.Output.DatabasePath = serveDB
		}
		return nil
	})
	if err != nil {
		return err
	}

	closeLog, err := common.SetupLogging(cfg, "server")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	dbPath := cfg.Output.DatabasePath
	if dbPath == "" {
		dbPath = config.DefaultDBFile
	}
	store, err := storage.Open(storage.Config{Path: dbPath, LogLevel: "error"})
	if err != nil {
		return err
	}
	defer store.Close()

	addr := cfg.Server.Addr
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	log.Info().Str("db", dbPath).Msg("📂 serving results database")
	srv := server.New(server.Config{Addr: addr, Debug: cfg.Logging.Level == "debug"},
		optimization.DefaultTracker, store, monitoring.NewHealthChecker())
	return srv.Run(ctx)
}
