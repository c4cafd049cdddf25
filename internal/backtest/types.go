package backtest

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// ExitType labels why a simulated trade was closed
type ExitType string

const (
	ExitOriginal ExitType = "Original" // baseline replay without any overlay
	ExitSL       ExitType = "SL"
	ExitBESL     ExitType = "BE_SL"
	ExitTS       ExitType = "TS"
	ExitSignal   ExitType = "EXIT" // tradelist exit, no overlay fired
)

// Params is one overlay parameter tuple. All values are percents and zero
// disables the corresponding overlay.
type Params struct {
	SL        float64 `json:"sl" yaml:"sl"`
	BE        float64 `json:"be" yaml:"be"`
	TSTrigger float64 `json:"ts_trig" yaml:"ts_trig"`
	TSStep    float64 `json:"ts_step" yaml:"ts_step"`
}

// Validate rejects tuples that cannot be evaluated
func (p Params) Validate() error {
	if p.SL < 0 || p.BE < 0 || p.TSTrigger < 0 || p.TSStep < 0 {
		return fmt.Errorf("negative parameter in %s", p)
	}
	if p.TSTrigger > 0 && p.TSStep == 0 {
		return fmt.Errorf("ts_trig=%g requires ts_step > 0", p.TSTrigger)
	}
	return nil
}

// SLEnabled reports whether a fixed stop-loss is active
func (p Params) SLEnabled() bool { return p.SL > 0 }

// BEEnabled reports whether break-even is active
func (p Params) BEEnabled() bool { return p.BE > 0 }

// TSEnabled reports whether the trailing stop is active
func (p Params) TSEnabled() bool { return p.TSTrigger > 0 && p.TSStep > 0 }

// IsZero reports whether every overlay is disabled
func (p Params) IsZero() bool {
	return p.SL == 0 && p.BE == 0 && p.TSTrigger == 0 && p.TSStep == 0
}

// Less orders tuples lexicographically by (SL, BE, TSTrigger, TSStep)
func (p Params) Less(o Params) bool {
	if p.SL != o.SL {
		return p.SL < o.SL
	}
	if p.BE != o.BE {
		return p.BE < o.BE
	}
	if p.TSTrigger != o.TSTrigger {
		return p.TSTrigger < o.TSTrigger
	}
	return p.TSStep < o.TSStep
}

// Key returns a stable identifier for the tuple
func (p Params) Key() string {
	return fmt.Sprintf("sl=%g_be=%g_ts=%g_step=%g", p.SL, p.BE, p.TSTrigger, p.TSStep)
}

func (p Params) String() string {
	return fmt.Sprintf("(sl=%g, be=%g, ts_trig=%g, ts_step=%g)", p.SL, p.BE, p.TSTrigger, p.TSStep)
}

// TradeResult is the outcome of replaying one trade pair
type TradeResult struct {
	Num          int        `json:"num"`
	Side         types.Side `json:"side"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     time.Time  `json:"exit_time"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	ExitType     ExitType   `json:"exit_type"`
	PnLPct       float64    `json:"pnl_pct"`
	PnLPctOrigin float64    `json:"pnl_pct_origin"`
	Params       Params     `json:"params"`

	BEArmed  bool `json:"be_armed"`
	TSArmed  bool `json:"ts_armed"`
	BarsHeld int  `json:"bars_held"`
}

// PortfolioMetrics aggregates the results of one parameter tuple.
// ProfitFactor and RecoveryFactor may be +Inf; use SanitizeFloat before
// serializing.
type PortfolioMetrics struct {
	Params               Params           `json:"params"`
	PnLTotal             float64          `json:"pnl_total"`
	WinRate              float64          `json:"winrate"`
	ProfitFactor         float64          `json:"profit_factor"`
	MaxDrawdown          float64          `json:"max_drawdown"`
	AvgWin               float64          `json:"avg_win"`
	AvgLoss              float64          `json:"avg_loss"`
	GrossProfit          float64          `json:"gross_profit"`
	GrossLoss            float64          `json:"gross_loss"`
	MaxConsecutiveWins   int              `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int              `json:"max_consecutive_losses"`
	SharpeRatio          float64          `json:"sharpe_ratio"`
	RecoveryFactor       float64          `json:"recovery_factor"`
	TotalTrades          int              `json:"total_trades"`
	WinningTrades        int              `json:"winning_trades"`
	LosingTrades         int              `json:"losing_trades"`
	SkippedTrades        int              `json:"skipped_trades"`
	ExitTypeCounts       map[ExitType]int `json:"exit_type_counts"`
	Trades               []TradeResult    `json:"trades,omitempty"`
}
