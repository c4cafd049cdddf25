package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "results.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, started time.Time) *RunRecord {
	ranked := []optimization.Candidate{
		{Rank: 1, Params: backtest.Params{SL: 1, BE: 0.5}, Score: math.Inf(1),
			Metrics: &backtest.PortfolioMetrics{PnLTotal: 12, ProfitFactor: math.Inf(1), TotalTrades: 2}},
		{Rank: 2, Params: backtest.Params{SL: 2}, Score: 1.5,
			Metrics: &backtest.PortfolioMetrics{PnLTotal: 4, ProfitFactor: 1.5, TotalTrades: 2}},
		{Rank: 3, Params: backtest.Params{SL: 3}},
	}
	t0 := started.Add(-time.Hour)
	trades := []backtest.TradeResult{
		{Num: 2, Side: types.SideShort, EntryTime: t0.Add(time.Minute), ExitTime: t0.Add(2 * time.Minute),
			EntryPrice: 100, ExitPrice: 99, ExitType: backtest.ExitTS, PnLPct: 1, TSArmed: true},
		{Num: 1, Side: types.SideLong, EntryTime: t0, ExitTime: t0.Add(time.Minute),
			EntryPrice: 100, ExitPrice: 111, ExitType: backtest.ExitSignal, PnLPct: 11, PnLPctOrigin: 11},
	}
	return &RunRecord{
		ID:          id,
		Mode:        "grid",
		Objective:   "pf",
		StartedAt:   started,
		FinishedAt:  started.Add(time.Second),
		Evaluated:   3,
		Failed:      1,
		BaselinePnL: 2,
		Candidates:  CandidateRecords(id, ranked, 2),
		Trades:      TradeRecords(id, 1, trades),
	}
}

// TestStore_RoundTrip tests that a saved run reads back with ranked candidates and trades
func TestStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-a", started)))

	run, err := store.GetRun(ctx, "run-a", 0)
	require.NoError(t, err)
	assert.Equal(t, "grid", run.Mode)
	assert.Equal(t, 1, run.Failed)
	assert.True(t, run.StartedAt.Equal(started))
	require.Len(t, run.Candidates, 2)
	assert.Equal(t, 1, run.Candidates[0].Rank)
	assert.Equal(t, backtest.InfSentinel, run.Candidates[0].ProfitFactor)
	assert.Equal(t, backtest.InfSentinel, run.Candidates[0].Score)
	assert.Equal(t, 10.0, run.Candidates[0].Improvement)
	assert.Equal(t, backtest.Params{SL: 1, BE: 0.5}, run.Candidates[0].Params())

	top, err := store.GetRun(ctx, "run-a", 1)
	require.NoError(t, err)
	assert.Len(t, top.Candidates, 1)

	trades, err := store.GetTrades(ctx, "run-a", 1)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, 1, trades[0].Num)
	assert.Equal(t, "EXIT", trades[0].ExitType)
	assert.Equal(t, "SHORT", trades[1].Side)
	assert.True(t, trades[1].TSArmed)
}

// TestStore_ListAndDelete tests ordering, limits and deletion
func TestStore_ListAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("old", base)))
	require.NoError(t, store.SaveRun(ctx, sampleRun("new", base.Add(time.Hour))))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, store.DeleteRun(ctx, "old"))
	_, err = store.GetRun(ctx, "old", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryStorage))

	trades, err := store.GetTrades(ctx, "old", 1)
	require.NoError(t, err)
	assert.Empty(t, trades)

	assert.Error(t, store.DeleteRun(ctx, "missing"))
}

// TestStore_DuplicateID tests that a failed save leaves nothing behind
func TestStore_DuplicateID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("dup", started)))
	assert.Error(t, store.SaveRun(ctx, sampleRun("dup", started)))

	trades, err := store.GetTrades(ctx, "dup", 1)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

// TestOpen_EmptyPath tests configuration validation
func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryConfiguration))
}
