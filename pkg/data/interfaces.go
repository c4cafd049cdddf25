package data

import (
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// CandleProvider loads candle series from a source
type CandleProvider interface {
	// LoadCandles loads a normalized candle series from the specified source
	LoadCandles(source string) ([]types.OHLCV, error)

	// GetName returns the name of the data provider
	GetName() string
}

// TradeRowProvider loads normalized tradelist rows
type TradeRowProvider interface {
	// LoadTradeRows loads tradelist rows from the specified source
	LoadTradeRows(source string) ([]types.TradeRow, error)
}

// DataCache interface for caching loaded candle series
type DataCache interface {
	// Get retrieves data from cache if available
	Get(key string) ([]types.OHLCV, bool)

	// Set stores data in cache
	Set(key string, data []types.OHLCV)

	// Clear removes all cached data
	Clear()

	// Size returns the number of cached entries
	Size() int
}

// CandleColumns names the accepted header aliases of a candle file
var CandleColumns = map[string][]string{
	"time":   {"time", "timestamp", "date", "datetime", "open_time"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c"},
	"volume": {"volume", "vol", "v"},
}

// TradeColumns names the accepted header aliases of a normalized tradelist
var TradeColumns = map[string][]string{
	"trade_id":     {"trade_id", "trade #", "trade", "id", "num"},
	"type":         {"type"},
	"date":         {"date", "date/time", "datetime", "time"},
	"price":        {"price", "price usdt", "price usd"},
	"signal":       {"signal"},
	"side":         {"side", "direction"},
	"run_up_pct":   {"run_up_pct", "run-up %", "runup_pct"},
	"drawdown_pct": {"drawdown_pct", "drawdown %"},
	"pnl_pct":      {"pnl_pct", "net p&l %", "profit_pct"},
}
