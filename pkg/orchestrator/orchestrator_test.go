package orchestrator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/monitoring"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/analysis"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeLoader serves an in-memory dataset
type fakeLoader struct {
	candles []types.OHLCV
	pairs   []types.TradePair
	err     error
	calls   int
}

func (f *fakeLoader) Load(ctx context.Context, candlePath, tradePath string, sel data.Selection) (*data.Dataset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &data.Dataset{
		Candles:  f.candles,
		Pairs:    f.pairs,
		AllPairs: f.pairs,
		Report:   data.AssemblyReport{Rows: 2 * len(f.pairs), Pairs: len(f.pairs)},
	}, nil
}

// recordingSink keeps every published run
type recordingSink struct {
	results []*RunResult
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, r *RunResult) error {
	s.results = append(s.results, r)
	return s.err
}

func zigzagCandles(n int) []types.OHLCV {
	out := make([]types.OHLCV, n)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := math.Sin(float64(i)/4) * 1.2
		open := price
		closeP := price + drift
		out[i] = types.OHLCV{
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      math.Max(open, closeP) + 0.5,
			Low:       math.Min(open, closeP) - 0.5,
			Close:     closeP,
		}
		price = closeP
	}
	return out
}

// testPairs opens a trade every 10 bars and holds it for 5
func testPairs(candles []types.OHLCV, withExcursions bool) []types.TradePair {
	var pairs []types.TradePair
	for i, num := 0, 1; i+5 < len(candles); i, num = i+10, num+1 {
		side := types.SideLong
		if num%2 == 0 {
			side = types.SideShort
		}
		p := types.TradePair{
			Num:        num,
			Side:       side,
			EntryTime:  candles[i].Timestamp,
			ExitTime:   candles[i+5].Timestamp,
			EntryPrice: candles[i].Open,
			ExitPrice:  candles[i+5].Close,
		}
		if withExcursions {
			ru, dd := float64(num), float64(num)/10
			pnl := -0.5
			if num > 6 {
				pnl = 1
			}
			p.RunUpPct, p.DrawdownPct, p.PnLPct = &ru, &dd, &pnl
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func testConfig() *config.OptimizerConfig {
	cfg := config.DefaultConfig()
	cfg.Data.CandlesFile = "candles.csv"
	cfg.Data.TradesFile = "trades.csv"
	cfg.Search.Workers = 2
	cfg.Search.SelectedParams = []string{"sl"}
	cfg.Ranges.SL = optimization.ParamRange{Min: 0.5, Max: 2, Step: 0.5}
	return cfg
}

func newTestOrchestrator(loader DatasetLoader, sinks ...Sink) (*DefaultOrchestrator, *optimization.ProgressTracker) {
	tracker := optimization.NewProgressTracker()
	o := NewOrchestrator(
		WithRunner(NewBacktestRunnerWithLoader(loader)),
		WithTracker(tracker),
		WithSinks(sinks...),
	)
	o.newID = func() string { return "run-test" }
	return o, tracker
}

// TestRun_Grid tests a complete grid run from load to sinks
func TestRun_Grid(t *testing.T) {
	candles := zigzagCandles(120)
	pairs := testPairs(candles, false)
	sink := &recordingSink{}
	o, tracker := newTestOrchestrator(&fakeLoader{candles: candles, pairs: pairs}, sink)

	res, err := o.Run(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, "run-test", res.RunID)
	assert.Equal(t, optimization.ModeGrid, res.Mode)
	assert.Equal(t, optimization.ObjectivePnL, res.Objective)
	assert.Equal(t, 4, res.TotalCombinations)
	assert.Equal(t, 4, res.Evaluated)
	assert.Zero(t, res.FailedEvaluations)
	assert.False(t, res.Aborted)
	require.Len(t, res.Ranked, 4)

	for i, c := range res.Ranked {
		assert.Equal(t, i+1, c.Rank)
		assert.Zero(t, c.Params.BE)
		assert.Zero(t, c.Params.TSTrigger)
		assert.Nil(t, c.Metrics.Trades, "ranked candidates keep aggregates only")
		assert.Equal(t, len(pairs), c.Metrics.TotalTrades)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Ranked[i-1].Score, c.Score)
		}
	}

	require.NotNil(t, res.Baseline)
	assert.Equal(t, len(pairs), res.Baseline.ExitTypeCounts[backtest.ExitOriginal])
	require.NotNil(t, res.Best)
	assert.Len(t, res.Best.Trades, len(pairs))
	assert.Equal(t, res.Ranked[0].Params, res.Best.Params)
	assert.InDelta(t, res.Ranked[0].Metrics.PnLTotal, res.Best.PnLTotal, 1e-9)
	assert.InDelta(t, res.Best.PnLTotal-res.Baseline.PnLTotal, res.Improvement(res.Ranked[0]), 1e-9)

	require.Len(t, sink.results, 1)
	assert.Same(t, res, sink.results[0])

	p := tracker.Snapshot()
	assert.False(t, p.Running)
	assert.False(t, p.Aborted)
	assert.Equal(t, 4, p.CurrentProgress)
	assert.Equal(t, "run-test", p.RunID)
}

// TestRun_Cancelled tests that a cancelled run is still published as aborted
func TestRun_Cancelled(t *testing.T) {
	candles := zigzagCandles(120)
	sink := &recordingSink{}
	o, tracker := newTestOrchestrator(&fakeLoader{candles: candles, pairs: testPairs(candles, false)}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := o.Run(ctx, testConfig())
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	assert.Empty(t, res.Ranked)
	assert.Nil(t, res.Best)
	require.NotNil(t, res.Baseline)
	assert.Len(t, sink.results, 1)
	assert.True(t, tracker.Snapshot().Aborted)
}

// TestRun_SmartRanges tests that smart ranges replace the configured ones
func TestRun_SmartRanges(t *testing.T) {
	candles := zigzagCandles(120)
	pairs := testPairs(candles, true)
	o, _ := newTestOrchestrator(&fakeLoader{candles: candles, pairs: pairs})

	cfg := testConfig()
	cfg.Search.SelectedParams = nil
	cfg.Search.SmartRanges = true

	samples, missing := analysis.SamplesFromPairs(pairs)
	require.Zero(t, missing)
	export, err := analysis.NewRangeFinder(samples, analysis.Options{MaxGridSize: cfg.Search.MaxGridSize}).Export()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, export.SL, res.Space.SL)
	assert.Equal(t, export.BE, res.Space.BE)
	assert.Equal(t, export.TSTrigger, res.Space.TSTrigger)
	assert.Equal(t, export.TSStep, res.Space.TSStep)
	assert.Equal(t, optimization.AllParams, res.Space.Selected)
	assert.Equal(t, res.Space.Size(), res.TotalCombinations+res.RejectedTuples)
	assert.NotEmpty(t, res.Ranked)
}

// TestRun_GridCeiling tests that oversized grids are widened with an INFO warning
func TestRun_GridCeiling(t *testing.T) {
	candles := zigzagCandles(120)
	o, _ := newTestOrchestrator(&fakeLoader{candles: candles, pairs: testPairs(candles, false)})

	cfg := testConfig()
	cfg.Search.SelectedParams = []string{"sl", "be"}
	cfg.Ranges.SL = optimization.ParamRange{Min: 0.5, Max: 5, Step: 0.5}
	cfg.Ranges.BE = optimization.ParamRange{Min: 0.5, Max: 5, Step: 0.5}
	cfg.Search.MaxGridSize = 30

	res, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Space.Size(), 30)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, analysis.WarnInfo, res.Warnings[0].Code)
	assert.Equal(t, float64(res.Space.Size()), res.Warnings[0].Value)
}

// TestRun_LoadFailure tests that data errors stop the run and reach health
func TestRun_LoadFailure(t *testing.T) {
	loadErr := opterrors.NewDataError("test", "load", errors.New("file missing"))
	health := monitoring.NewHealthChecker()
	sink := &recordingSink{}
	o, tracker := newTestOrchestrator(&fakeLoader{err: loadErr}, sink)
	WithHealth(health)(o)

	res, err := o.Run(context.Background(), testConfig())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryData))
	assert.Empty(t, sink.results)
	assert.True(t, tracker.Snapshot().Aborted)

	status := health.Status()
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "run-test", status.LastRunID)
}

// TestRun_SinkFailure tests that sink errors are recorded without failing the run
func TestRun_SinkFailure(t *testing.T) {
	candles := zigzagCandles(120)
	failing := &recordingSink{err: errors.New("disk full")}
	ok := &recordingSink{}
	o, _ := newTestOrchestrator(&fakeLoader{candles: candles, pairs: testPairs(candles, false)}, failing, ok)

	res, err := o.Run(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"recording: disk full"}, res.SinkErrors)
	assert.Len(t, ok.results, 1)
}

// TestSimulate tests a single-tuple replay against the baseline
func TestSimulate(t *testing.T) {
	candles := zigzagCandles(120)
	pairs := testPairs(candles, false)
	o, _ := newTestOrchestrator(&fakeLoader{candles: candles, pairs: pairs})

	p := backtest.Params{SL: 1, TSTrigger: 1, TSStep: 0.5}
	res, err := o.Simulate(context.Background(), testConfig(), p)
	require.NoError(t, err)
	assert.Equal(t, p, res.Params)
	assert.Len(t, res.Metrics.Trades, len(pairs))
	assert.Equal(t, len(pairs), res.Baseline.TotalTrades)
	assert.InDelta(t, res.Metrics.PnLTotal-res.Baseline.PnLTotal, res.Improvement(), 1e-9)

	_, err = o.Simulate(context.Background(), testConfig(), backtest.Params{TSTrigger: 1})
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryParameter))
}

// TestAnalyze_Sources tests the excursion source selection
func TestAnalyze_Sources(t *testing.T) {
	candles := zigzagCandles(120)

	o, _ := newTestOrchestrator(&fakeLoader{candles: candles, pairs: testPairs(candles, true)})
	res, err := o.Analyze(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "tradelist", res.Source)
	assert.Zero(t, res.Missing)
	assert.Equal(t, 12, res.Analysis.TradeCount)

	o, _ = newTestOrchestrator(&fakeLoader{candles: candles, pairs: testPairs(candles, false)})
	res, err = o.Analyze(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "candles", res.Source)
	assert.Equal(t, 12, res.Missing)
	require.NotNil(t, res.Export)
}

// TestWorkflows tests that workflows dispatch to the orchestrator
func TestWorkflows(t *testing.T) {
	candles := zigzagCandles(120)
	loader := &fakeLoader{candles: candles, pairs: testPairs(candles, true)}
	o, _ := newTestOrchestrator(loader)
	cfg := testConfig()

	workflows := []Workflow{
		NewOptimizationWorkflow(o, cfg),
		NewAnalysisWorkflow(o, cfg),
		NewSimulationWorkflow(o, cfg, backtest.Params{SL: 1}),
	}
	want := []WorkflowType{WorkflowTypeOptimization, WorkflowTypeAnalysis, WorkflowTypeSimulation}
	for i, w := range workflows {
		assert.Equal(t, want[i], w.GetWorkflowType())
		out, err := w.Execute(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, out)
	}
	assert.Equal(t, 3, loader.calls)
	assert.IsType(t, &RunResult{}, mustExecute(t, workflows[0]))
}

func mustExecute(t *testing.T, w Workflow) interface{} {
	t.Helper()
	out, err := w.Execute(context.Background())
	require.NoError(t, err)
	return out
}

// TestRunRecord tests the database conversion of a run
func TestRunRecord(t *testing.T) {
	candles := zigzagCandles(120)
	pairs := testPairs(candles, false)
	o, _ := newTestOrchestrator(&fakeLoader{candles: candles, pairs: pairs})

	res, err := o.Run(context.Background(), testConfig())
	require.NoError(t, err)

	rec := RunRecord(res)
	assert.Equal(t, "run-test", rec.ID)
	assert.Equal(t, "grid", rec.Mode)
	assert.Len(t, rec.Candidates, 4)
	assert.Len(t, rec.Trades, 2*len(pairs))
	assert.Equal(t, 0, rec.Trades[0].Rank)
	assert.Equal(t, 1, rec.Trades[len(rec.Trades)-1].Rank)
	assert.Contains(t, rec.SearchSpace, `"sl"`)
}
