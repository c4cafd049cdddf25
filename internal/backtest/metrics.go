package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// InfSentinel replaces infinities at serialization boundaries
const InfSentinel = 999999.0

// PnLPercent returns the signed percent return of a trade. A zero entry
// price yields 0 and non-finite results are clamped to 0.
func PnLPercent(side types.Side, entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	var pnl float64
	if side == types.SideShort {
		pnl = (entry - exit) / entry * 100
	} else {
		pnl = (exit - entry) / entry * 100
	}
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		log.Debug().Err(opterrors.NewNumericError("backtest", "pnl",
			fmt.Sprintf("non-finite pnl for entry %g exit %g", entry, exit))).Msg("pnl clamped to 0")
		return 0
	}
	return pnl
}

// SanitizeFloat maps NaN to 0 and ±Inf to ±InfSentinel
func SanitizeFloat(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return InfSentinel
	case math.IsInf(v, -1):
		return -InfSentinel
	}
	return v
}

// TradeSeries is a sequence of per-trade results in execution order
type TradeSeries []TradeResult

// SortByEntry orders the series by entry time, then trade number
func (ts TradeSeries) SortByEntry() {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].EntryTime.Equal(ts[j].EntryTime) {
			return ts[i].EntryTime.Before(ts[j].EntryTime)
		}
		return ts[i].Num < ts[j].Num
	})
}

// CalculateSharpeRatio returns mean/stdev of per-trade PnL using the
// sample standard deviation
func (ts TradeSeries) CalculateSharpeRatio() float64 {
	n := len(ts)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range ts {
		mean += r.PnLPct
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range ts {
		variance += (r.PnLPct - mean) * (r.PnLPct - mean)
	}
	variance /= float64(n - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 || stdDev < 1e-12 {
		return 0
	}
	return mean / stdDev
}

// CalculateProfitFactor returns gross profit over gross loss. It is +Inf
// when there are no losses but some profit, and 0 when both are zero.
func (ts TradeSeries) CalculateProfitFactor() float64 {
	profit, loss := ts.grossProfitLoss()
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

// CalculateWinRate returns the percentage of trades with positive PnL
func (ts TradeSeries) CalculateWinRate() float64 {
	if len(ts) == 0 {
		return 0
	}
	wins := 0
	for _, r := range ts {
		if r.PnLPct > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(ts)) * 100
}

// CalculateMaxDrawdown returns the largest peak-to-trough fall of the
// cumulative PnL curve. The curve starts at 0.
func (ts TradeSeries) CalculateMaxDrawdown() float64 {
	cumulative, peak, maxDD := 0.0, 0.0, 0.0
	for _, r := range ts {
		cumulative += r.PnLPct
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// CalculateStreaks returns the longest winning and losing runs. A trade
// with PnL <= 0 counts as a loss.
func (ts TradeSeries) CalculateStreaks() (maxWins, maxLosses int) {
	wins, losses := 0, 0
	for _, r := range ts {
		if r.PnLPct > 0 {
			wins++
			losses = 0
		} else {
			losses++
			wins = 0
		}
		if wins > maxWins {
			maxWins = wins
		}
		if losses > maxLosses {
			maxLosses = losses
		}
	}
	return maxWins, maxLosses
}

func (ts TradeSeries) grossProfitLoss() (profit, loss float64) {
	for _, r := range ts {
		if r.PnLPct > 0 {
			profit += r.PnLPct
		} else {
			loss += math.Abs(r.PnLPct)
		}
	}
	return profit, loss
}

// UpdateMetrics recomputes every aggregate from m.Trades. Trades are sorted
// by entry time first so drawdown and streaks follow execution order.
func (m *PortfolioMetrics) UpdateMetrics() {
	series := TradeSeries(m.Trades)
	series.SortByEntry()

	m.TotalTrades = len(series)
	m.PnLTotal = 0
	m.WinningTrades, m.LosingTrades = 0, 0
	m.ExitTypeCounts = make(map[ExitType]int)

	for _, r := range series {
		m.PnLTotal += r.PnLPct
		if r.PnLPct > 0 {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
		m.ExitTypeCounts[r.ExitType]++
	}

	m.GrossProfit, m.GrossLoss = series.grossProfitLoss()
	m.AvgWin, m.AvgLoss = 0, 0
	if m.WinningTrades > 0 {
		m.AvgWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = -m.GrossLoss / float64(m.LosingTrades)
	}

	m.WinRate = series.CalculateWinRate()
	m.ProfitFactor = series.CalculateProfitFactor()
	m.MaxDrawdown = series.CalculateMaxDrawdown()
	m.MaxConsecutiveWins, m.MaxConsecutiveLosses = series.CalculateStreaks()
	m.SharpeRatio = series.CalculateSharpeRatio()
	m.RecoveryFactor = recoveryFactor(m.PnLTotal, m.MaxDrawdown)
}

func recoveryFactor(pnl, dd float64) float64 {
	if dd == 0 {
		if pnl > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return pnl / dd
}

// Sanitized returns a copy safe for JSON encoding
func (m PortfolioMetrics) Sanitized() PortfolioMetrics {
	m.PnLTotal = SanitizeFloat(m.PnLTotal)
	m.WinRate = SanitizeFloat(m.WinRate)
	m.ProfitFactor = SanitizeFloat(m.ProfitFactor)
	m.MaxDrawdown = SanitizeFloat(m.MaxDrawdown)
	m.AvgWin = SanitizeFloat(m.AvgWin)
	m.AvgLoss = SanitizeFloat(m.AvgLoss)
	m.GrossProfit = SanitizeFloat(m.GrossProfit)
	m.GrossLoss = SanitizeFloat(m.GrossLoss)
	m.SharpeRatio = SanitizeFloat(m.SharpeRatio)
	m.RecoveryFactor = SanitizeFloat(m.RecoveryFactor)
	return m
}
