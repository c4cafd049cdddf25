package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/monitoring"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
)

// Session is a loaded dataset with its evaluation engine
type Session struct {
	Dataset      *data.Dataset
	Engine       *backtest.BacktestEngine
	LoadDuration time.Duration
}

// DefaultBacktestRunner implements the BacktestRunner interface
type DefaultBacktestRunner struct {
	loader DatasetLoader
}

// NewDefaultBacktestRunner creates a runner reading CSV files in the
// configured reference zone
func NewDefaultBacktestRunner() BacktestRunner {
	return &DefaultBacktestRunner{}
}

// NewBacktestRunnerWithLoader creates a runner with a custom loader
func NewBacktestRunnerWithLoader(loader DatasetLoader) BacktestRunner {
	return &DefaultBacktestRunner{loader: loader}
}

// Prepare loads the inputs, applies the trade selection and locates every
// selected trade in the candle series
func (r *DefaultBacktestRunner) Prepare(ctx context.Context, cfg *config.OptimizerConfig) (*Session, error) {
	start := time.Now()

	loader := r.loader
	if loader == nil {
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		loader = data.NewDataManager(loc)
	}
	sel, err := cfg.TradeSelection()
	if err != nil {
		return nil, err
	}

	ds, err := loader.Load(ctx, cfg.Data.CandlesFile, cfg.Data.TradesFile, sel)
	if err != nil {
		return nil, err
	}
	r.logDataset(ds)

	engine, err := backtest.NewBacktestEngine(ds.Candles, ds.Pairs, cfg.SimulatorOptions())
	if err != nil {
		return nil, err
	}
	monitoring.RecordSkippedTrades(len(engine.Skipped()))

	return &Session{
		Dataset:      ds,
		Engine:       engine,
		LoadDuration: time.Since(start),
	}, nil
}

func (r *DefaultBacktestRunner) logDataset(ds *data.Dataset) {
	ev := log.Info().
		Int("candles", len(ds.Candles)).
		Int("pairs", len(ds.AllPairs)).
		Int("selected", len(ds.Pairs)).
		Int("discarded", len(ds.Report.Discarded))
	if len(ds.Candles) > 0 {
		ev = ev.Time("from", ds.Candles[0].Timestamp).Time("to", ds.Candles[len(ds.Candles)-1].Timestamp)
	}
	ev.Msg("📊 data loaded")
	if n := len(ds.Report.AmbiguousSide); n > 0 {
		log.Warn().Int("trades", n).Msg("⚠️ side could not be inferred, defaulted to LONG")
	}
}
