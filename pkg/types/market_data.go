package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// OHLCV is a single candle bar.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide accepts "long"/"short" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return SideLong, nil
	case "SHORT", "SELL":
		return SideShort, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// TradeRow is one normalized row of a tradelist. Excursion columns are
// optional and only consumed by the range analyzer.
type TradeRow struct {
	TradeID     int
	Type        string
	Date        time.Time
	Price       float64
	Signal      string
	Side        string
	RunUpPct    *float64
	DrawdownPct *float64
	PnLPct      *float64
}

// TradePair is an entry/exit pair assembled from tradelist rows. It is
// treated as immutable once built.
type TradePair struct {
	Num        int       `json:"num"`
	Side       Side      `json:"side"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`

	// Excursions reported by the tradelist, if any.
	RunUpPct    *float64 `json:"run_up_pct,omitempty"`
	DrawdownPct *float64 `json:"drawdown_pct,omitempty"`
	PnLPct      *float64 `json:"pnl_pct,omitempty"`
}

// Validate reports whether the pair can be simulated.
func (p TradePair) Validate() error {
	if p.Side != SideLong && p.Side != SideShort {
		return fmt.Errorf("trade %d: invalid side %q", p.Num, p.Side)
	}
	if !validPrice(p.EntryPrice) || !validPrice(p.ExitPrice) {
		return fmt.Errorf("trade %d: non-positive price (entry=%v exit=%v)", p.Num, p.EntryPrice, p.ExitPrice)
	}
	if !p.ExitTime.After(p.EntryTime) {
		return fmt.Errorf("trade %d: exit %s not after entry %s", p.Num, p.ExitTime, p.EntryTime)
	}
	return nil
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
