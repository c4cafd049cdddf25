package data

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// Dataset is everything one optimization run reads
type Dataset struct {
	Candles  []types.OHLCV
	Pairs    []types.TradePair
	AllPairs []types.TradePair
	Report   AssemblyReport
}

// DataManager combines loading, assembly and selection
type DataManager struct {
	candles CandleProvider
	trades  TradeRowProvider
}

// NewDataManager creates a data manager reading CSV files in the given
// reference zone, with candle caching
func NewDataManager(loc *time.Location) *DataManager {
	csv := NewCSVProviderInLocation(loc)
	return &DataManager{
		candles: NewCachedProvider(csv),
		trades:  csv,
	}
}

// NewDataManagerWithProviders creates a data manager with custom providers
func NewDataManagerWithProviders(candles CandleProvider, trades TradeRowProvider) *DataManager {
	return &DataManager{candles: candles, trades: trades}
}

// Load reads both files concurrently, assembles pairs and applies the
// selection. Candles are trimmed to the window spanned by the selected
// trades.
func (dm *DataManager) Load(ctx context.Context, candlePath, tradePath string, sel Selection) (*Dataset, error) {
	var (
		candles []types.OHLCV
		rows    []types.TradeRow
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candles, err = dm.candles.LoadCandles(candlePath)
		if err != nil {
			return opterrors.NewDataError("data_manager", "load_candles", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rows, err = dm.trades.LoadTradeRows(tradePath)
		if err != nil {
			return opterrors.NewDataError("data_manager", "load_tradelist", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dm.Prepare(candles, rows, sel)
}

// Prepare assembles and selects trades from already loaded inputs
func (dm *DataManager) Prepare(candles []types.OHLCV, rows []types.TradeRow, sel Selection) (*Dataset, error) {
	all, report := AssemblePairs(rows)
	if len(all) == 0 {
		return nil, opterrors.NewDataError("data_manager", "assemble", opterrors.ErrNoTrades)
	}

	selected := SelectTrades(all, sel)
	if len(selected) == 0 {
		return nil, opterrors.NewDataError("data_manager", "select", opterrors.ErrNoTrades).
			WithMessage("selection left no trades")
	}

	window := candles
	if first, last, ok := TradeWindow(selected); ok {
		if trimmed := FilterByDateRange(candles, first, last); len(trimmed) > 0 {
			window = trimmed
		}
	}

	return &Dataset{
		Candles:  window,
		Pairs:    selected,
		AllPairs: all,
		Report:   report,
	}, nil
}
