package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// syntheticCandles builds a deterministic zig-zag series
func syntheticCandles(n int) []types.OHLCV {
	out := make([]types.OHLCV, n)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := math.Sin(float64(i)/5) * 1.5
		open := price
		closeP := price + drift
		high := math.Max(open, closeP) + 0.6
		low := math.Min(open, closeP) - 0.6
		out[i] = types.OHLCV{
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
		}
		price = closeP
	}
	return out
}

// syntheticPairs opens a trade every step bars and holds it for hold bars
func syntheticPairs(candles []types.OHLCV, step, hold int) []types.TradePair {
	var pairs []types.TradePair
	num := 1
	for i := 0; i+hold < len(candles); i += step {
		side := types.SideLong
		if num%2 == 0 {
			side = types.SideShort
		}
		pairs = append(pairs, types.TradePair{
			Num:        num,
			Side:       side,
			EntryTime:  candles[i].Timestamp,
			ExitTime:   candles[i+hold].Timestamp,
			EntryPrice: candles[i].Open,
			ExitPrice:  candles[i+hold].Close,
		})
		num++
	}
	return pairs
}

// TestNewBacktestEngine_SkipsUnlocatedTrades tests that bad pairs are excluded and counted once
func TestNewBacktestEngine_SkipsUnlocatedTrades(t *testing.T) {
	candles := syntheticCandles(50)
	pairs := syntheticPairs(candles, 10, 5)
	pairs = append(pairs, types.TradePair{
		Num: 99, Side: types.SideLong,
		EntryTime: candles[0].Timestamp.Add(-time.Hour), ExitTime: candles[3].Timestamp,
		EntryPrice: 100, ExitPrice: 101,
	})

	engine, err := NewBacktestEngine(candles, pairs, SimulatorOptions{})
	require.NoError(t, err)

	assert.Equal(t, len(pairs)-1, engine.TradeCount())
	require.Len(t, engine.Skipped(), 1)
	assert.Equal(t, 99, engine.Skipped()[0].Num)

	m, err := engine.Evaluate(context.Background(), Params{SL: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, m.SkippedTrades)
	assert.Equal(t, len(pairs)-1, m.TotalTrades)
}

// TestNewBacktestEngine_Errors tests refusal on unusable inputs
func TestNewBacktestEngine_Errors(t *testing.T) {
	_, err := NewBacktestEngine(nil, nil, SimulatorOptions{})
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryData))

	candles := syntheticCandles(10)
	dup := append([]types.OHLCV{}, candles...)
	dup[3].Timestamp = dup[2].Timestamp
	_, err = NewBacktestEngine(dup, syntheticPairs(candles, 2, 1), SimulatorOptions{})
	require.Error(t, err)

	_, err = NewBacktestEngine(candles, nil, SimulatorOptions{})
	require.ErrorIs(t, err, opterrors.ErrNoTrades)
}

// TestEvaluate_ZeroParamsMatchOrigin tests that disabled overlays reproduce the tradelist on every trade
func TestEvaluate_ZeroParamsMatchOrigin(t *testing.T) {
	candles := syntheticCandles(300)
	engine, err := NewBacktestEngine(candles, syntheticPairs(candles, 7, 11), SimulatorOptions{Slippage: 0.1})
	require.NoError(t, err)

	m, err := engine.Evaluate(context.Background(), Params{})
	require.NoError(t, err)
	for _, r := range m.Trades {
		assert.Equal(t, ExitSignal, r.ExitType)
		assert.Equal(t, r.PnLPctOrigin, r.PnLPct)
	}

	baseline := engine.EvaluateBaseline()
	assert.InDelta(t, baseline.PnLTotal, m.PnLTotal, 1e-9)
	assert.Equal(t, baseline.TotalTrades, baseline.ExitTypeCounts[ExitOriginal])
}

// TestEvaluate_Deterministic tests that repeated evaluations give identical aggregates
func TestEvaluate_Deterministic(t *testing.T) {
	candles := syntheticCandles(400)
	engine, err := NewBacktestEngine(candles, syntheticPairs(candles, 5, 20), SimulatorOptions{})
	require.NoError(t, err)

	p := Params{SL: 1.5, BE: 0.8, TSTrigger: 1.2, TSStep: 0.4}
	a, err := engine.Evaluate(context.Background(), p)
	require.NoError(t, err)
	b, err := engine.Evaluate(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

// TestEvaluate_TrailingExitsNotBelowEntry tests that without slippage a trailing exit never loses money
func TestEvaluate_TrailingExitsNotBelowEntry(t *testing.T) {
	candles := syntheticCandles(400)
	engine, err := NewBacktestEngine(candles, syntheticPairs(candles, 5, 30), SimulatorOptions{})
	require.NoError(t, err)

	m, err := engine.Evaluate(context.Background(), Params{TSTrigger: 0.5, TSStep: 0.3})
	require.NoError(t, err)
	for _, r := range m.Trades {
		if r.ExitType == ExitTS {
			assert.GreaterOrEqual(t, r.PnLPct, -1e-9, "trailing stop armed at or above entry for trade %d", r.Num)
		}
	}
}

// TestEvaluate_RejectsInvalidParams tests parameter validation before evaluation
func TestEvaluate_RejectsInvalidParams(t *testing.T) {
	candles := syntheticCandles(50)
	engine, err := NewBacktestEngine(candles, syntheticPairs(candles, 10, 5), SimulatorOptions{})
	require.NoError(t, err)

	_, err = engine.Evaluate(context.Background(), Params{SL: -1})
	require.ErrorIs(t, err, opterrors.ErrInvalidParams)

	_, err = engine.Evaluate(context.Background(), Params{TSTrigger: 2})
	require.ErrorIs(t, err, opterrors.ErrInvalidParams)
}

// TestEvaluate_Cancelled tests that a cancelled context stops the evaluation
func TestEvaluate_Cancelled(t *testing.T) {
	candles := syntheticCandles(50)
	engine, err := NewBacktestEngine(candles, syntheticPairs(candles, 10, 5), SimulatorOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Evaluate(ctx, Params{SL: 1})
	require.ErrorIs(t, err, context.Canceled)
}

// TestExcursions tests MFE/MAE measurement from candle extremes
func TestExcursions(t *testing.T) {
	candles := bars(
		[4]float64{100, 101, 99, 100.5},
		[4]float64{100.5, 104, 100, 103},
		[4]float64{103, 103.5, 97, 98},
	)
	pairs := []types.TradePair{
		{Num: 1, Side: types.SideLong, EntryTime: candles[0].Timestamp, ExitTime: candles[2].Timestamp, EntryPrice: 100, ExitPrice: 98},
	}
	engine, err := NewBacktestEngine(candles, pairs, SimulatorOptions{})
	require.NoError(t, err)

	ex := engine.Excursions()
	require.Len(t, ex, 1)
	assert.InDelta(t, 4.0, ex[0].MFEPct, 1e-9)
	assert.InDelta(t, 3.0, ex[0].MAEPct, 1e-9)
	assert.InDelta(t, -2.0, ex[0].PnLPct, 1e-9)
}

// TestCandleIndex tests exact-match lookup
func TestCandleIndex(t *testing.T) {
	candles := syntheticCandles(5)
	idx, err := NewCandleIndex(candles)
	require.NoError(t, err)

	i, ok := idx.Lookup(candles[3].Timestamp)
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = idx.Lookup(candles[3].Timestamp.Add(time.Second))
	assert.False(t, ok)

	// same instant in another zone maps to the same bar
	i, ok = idx.Lookup(candles[2].Timestamp.In(time.FixedZone("UTC+7", 7*3600)))
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}
