package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func row(id int, typ string, minute int, price float64) types.TradeRow {
	return types.TradeRow{TradeID: id, Type: typ, Date: t0.Add(time.Duration(minute) * time.Minute), Price: price}
}

func ptr(v float64) *float64 { return &v }

// TestAssemblePairs tests grouping, side inference and output order
func TestAssemblePairs(t *testing.T) {
	exitWithRunup := row(1, "Exit long", 5, 101)
	exitWithRunup.RunUpPct = ptr(3.2)

	rows := []types.TradeRow{
		row(2, "Entry short", 10, 100),
		row(2, "Exit short", 12, 99),
		row(1, "Entry long", 0, 100),
		exitWithRunup,
	}

	pairs, report := AssemblePairs(rows)
	require.Len(t, pairs, 2)
	assert.Empty(t, report.Discarded)

	assert.Equal(t, 1, pairs[0].Num)
	assert.Equal(t, types.SideLong, pairs[0].Side)
	require.NotNil(t, pairs[0].RunUpPct)
	assert.Equal(t, 3.2, *pairs[0].RunUpPct)

	assert.Equal(t, 2, pairs[1].Num)
	assert.Equal(t, types.SideShort, pairs[1].Side)
	assert.Equal(t, 99.0, pairs[1].ExitPrice)
}

// TestAssemblePairs_Discards tests that incomplete and invalid groups are excluded
func TestAssemblePairs_Discards(t *testing.T) {
	rows := []types.TradeRow{
		row(1, "Entry long", 0, 100),
		row(2, "Entry long", 1, 100),
		row(2, "Exit long", 0, 101),
		row(3, "Entry long", 0, 100),
		row(3, "Entry long", 1, 100),
		row(3, "Exit long", 2, 100),
		row(4, "Entry long", 0, 0),
		row(4, "Exit long", 3, 101),
		row(5, "Entry long", 0, 100),
		row(5, "Exit long", 3, 101),
	}

	pairs, report := AssemblePairs(rows)
	require.Len(t, pairs, 1)
	assert.Equal(t, 5, pairs[0].Num)

	var ids []int
	for _, d := range report.Discarded {
		ids = append(ids, d.TradeID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
	assert.Equal(t, 10, report.Rows)
	assert.Equal(t, 1, report.Pairs)
}

// TestAssemblePairs_SideInference tests side precedence and the LONG fallback
func TestAssemblePairs_SideInference(t *testing.T) {
	explicit := row(1, "Entry", 0, 100)
	explicit.Side = "sell"
	fromSignal := row(2, "Entry", 0, 100)
	fromSignal.Signal = "Short breakout"
	ambiguous := row(3, "Entry", 0, 100)
	ambiguous.Signal = "long/short flip"

	rows := []types.TradeRow{
		explicit, row(1, "Exit", 1, 99),
		fromSignal, row(2, "Exit", 1, 99),
		ambiguous, row(3, "Exit", 1, 99),
	}

	pairs, report := AssemblePairs(rows)
	require.Len(t, pairs, 3)
	assert.Equal(t, types.SideShort, pairs[0].Side)
	assert.Equal(t, types.SideShort, pairs[1].Side)
	assert.Equal(t, types.SideLong, pairs[2].Side)
	assert.Equal(t, []int{3}, report.AmbiguousSide)
}

func selectionPairs() []types.TradePair {
	// Num order differs from time order
	return []types.TradePair{
		{Num: 3, EntryTime: t0.Add(1 * time.Hour)},
		{Num: 1, EntryTime: t0.Add(3 * time.Hour)},
		{Num: 2, EntryTime: t0.Add(2 * time.Hour)},
		{Num: 5, EntryTime: t0.Add(5 * time.Hour)},
		{Num: 4, EntryTime: t0.Add(4 * time.Hour)},
	}
}

func nums(pairs []types.TradePair) []int {
	out := make([]int, len(pairs))
	for i, p := range pairs {
		out[i] = p.Num
	}
	return out
}

// TestSelectTrades tests ordering, offset and limit
func TestSelectTrades(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want []int
	}{
		{"sequence all", Selection{Mode: SelectSequence}, []int{1, 2, 3, 4, 5}},
		{"time order", Selection{Mode: SelectTime}, []int{3, 2, 1, 4, 5}},
		{"offset one is the start", Selection{Offset: 1, Limit: 2}, []int{1, 2}},
		{"offset from third", Selection{Offset: 3}, []int{3, 4, 5}},
		{"negative keeps the tail", Selection{Offset: -2}, []int{4, 5}},
		{"negative beyond length", Selection{Offset: -10, Limit: 3}, []int{1, 2, 3}},
		{"offset past the end", Selection{Offset: 9}, []int{}},
		{"time then offset then limit", Selection{Mode: SelectTime, Offset: 2, Limit: 2}, []int{2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nums(SelectTrades(selectionPairs(), tt.sel)))
		})
	}
}

// TestSelectTrades_Random tests seeded determinism without mutating input
func TestSelectTrades_Random(t *testing.T) {
	in := selectionPairs()
	before := nums(in)

	a := SelectTrades(in, Selection{Mode: SelectRandom, Seed: 42})
	b := SelectTrades(in, Selection{Mode: SelectRandom, Seed: 42})

	assert.Equal(t, nums(a), nums(b))
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, nums(a))
	assert.Equal(t, before, nums(in))
}

// TestParseSelectionMode tests mode parsing
func TestParseSelectionMode(t *testing.T) {
	m, err := ParseSelectionMode("")
	require.NoError(t, err)
	assert.Equal(t, SelectSequence, m)

	m, err = ParseSelectionMode("Random")
	require.NoError(t, err)
	assert.Equal(t, SelectRandom, m)

	_, err = ParseSelectionMode("best")
	assert.Error(t, err)
}

// TestFilterByDateRange tests binary-search trimming
func TestFilterByDateRange(t *testing.T) {
	candles := make([]types.OHLCV, 10)
	for i := range candles {
		candles[i] = types.OHLCV{Timestamp: t0.Add(time.Duration(i) * time.Minute), Open: 1, High: 1, Low: 1, Close: 1}
	}

	got := FilterByDateRange(candles, t0.Add(2*time.Minute), t0.Add(5*time.Minute))
	require.Len(t, got, 4)
	assert.Equal(t, t0.Add(2*time.Minute), got[0].Timestamp)

	assert.Nil(t, FilterByDateRange(candles, t0.Add(time.Hour), t0.Add(2*time.Hour)))
}

// TestDataManager_Load tests the full load pipeline from files
func TestDataManager_Load(t *testing.T) {
	dir := t.TempDir()
	candlePath := filepath.Join(dir, "candles.csv")
	tradePath := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(candlePath, []byte(candleCSV), 0o644))
	require.NoError(t, os.WriteFile(tradePath, []byte(
		"trade_id,type,date,price\n1,Entry long,2024-01-01 00:00,100\n1,Exit long,2024-01-01 00:01,101.5\n"), 0o644))

	dm := NewDataManager(time.UTC)
	ds, err := dm.Load(context.Background(), candlePath, tradePath, Selection{})
	require.NoError(t, err)

	assert.Len(t, ds.Pairs, 1)
	assert.Len(t, ds.Candles, 2)
	assert.Equal(t, 1, ds.Report.Pairs)

	_, err = dm.Load(context.Background(), filepath.Join(dir, "missing.csv"), tradePath, Selection{})
	require.Error(t, err)
	assert.True(t, opterrors.IsCategory(err, opterrors.ErrorCategoryData))

	_, err = dm.Load(context.Background(), candlePath, tradePath, Selection{Offset: 5})
	assert.ErrorIs(t, err, opterrors.ErrNoTrades)
}
