package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// ctxCheckEvery is how many trades are replayed between context checks
const ctxCheckEvery = 256

// Evaluator computes portfolio metrics for one parameter tuple
type Evaluator interface {
	Evaluate(ctx context.Context, p Params) (*PortfolioMetrics, error)
}

// BacktestEngine is the portfolio evaluator. Candles and trade pairs are
// resolved once at construction and shared read-only by every evaluation.
type BacktestEngine struct {
	simulator *Simulator
	trades    []LocatedTrade
	skipped   []SkippedTrade
}

// SkippedTrade records a pair that could not be replayed
type SkippedTrade struct {
	Num    int    `json:"num"`
	Reason string `json:"reason"`
}

// NewBacktestEngine indexes the candles and locates every pair. Pairs that
// cannot be located are logged once and excluded from all evaluations.
func NewBacktestEngine(candles []types.OHLCV, pairs []types.TradePair, opts SimulatorOptions) (*BacktestEngine, error) {
	if len(candles) == 0 {
		return nil, opterrors.NewDataError("engine", "index", fmt.Errorf("empty candle series"))
	}
	index, err := NewCandleIndex(candles)
	if err != nil {
		return nil, opterrors.NewDataError("engine", "index", err)
	}

	engine := &BacktestEngine{simulator: NewSimulator(index, opts)}
	for _, pair := range pairs {
		lt, err := engine.simulator.Locate(pair)
		if err != nil {
			log.Info().Int("trade", pair.Num).Err(err).Msg("⏭️ trade skipped")
			engine.skipped = append(engine.skipped, SkippedTrade{Num: pair.Num, Reason: err.Error()})
			continue
		}
		engine.trades = append(engine.trades, lt)
	}

	if len(engine.trades) == 0 {
		return nil, opterrors.NewDataError("engine", "locate", opterrors.ErrNoTrades).
			WithContext("pairs", len(pairs)).
			WithContext("skipped", len(engine.skipped))
	}

	first, last := index.Range()
	log.Debug().
		Int("candles", index.Len()).
		Time("from", first).
		Time("to", last).
		Int("trades", len(engine.trades)).
		Int("skipped", len(engine.skipped)).
		Msg("backtest engine ready")
	return engine, nil
}

// Simulator returns the underlying per-trade simulator
func (e *BacktestEngine) Simulator() *Simulator {
	return e.simulator
}

// TradeCount returns the number of replayable trades
func (e *BacktestEngine) TradeCount() int {
	return len(e.trades)
}

// Skipped returns the pairs excluded at construction
func (e *BacktestEngine) Skipped() []SkippedTrade {
	out := make([]SkippedTrade, len(e.skipped))
	copy(out, e.skipped)
	return out
}

// Evaluate replays every trade under p and aggregates the results. Trades
// are replayed serially; a trade that panics is skipped and counted.
func (e *BacktestEngine) Evaluate(ctx context.Context, p Params) (*PortfolioMetrics, error) {
	if err := p.Validate(); err != nil {
		return nil, opterrors.NewParameterError("engine", "evaluate", err.Error())
	}

	metrics := &PortfolioMetrics{
		Params:        p,
		SkippedTrades: len(e.skipped),
		Trades:        make([]TradeResult, 0, len(e.trades)),
	}

	for i, lt := range e.trades {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		res, err := e.simulator.SafeSimulate(lt, p)
		if err != nil {
			log.Warn().Err(err).Msg("trade replay failed")
			metrics.SkippedTrades++
			continue
		}
		metrics.Trades = append(metrics.Trades, res)
	}

	metrics.UpdateMetrics()
	return metrics, nil
}

// EvaluateBaseline replays every trade without any overlay. Results are
// labelled Original and serve as the comparison point for candidates.
func (e *BacktestEngine) EvaluateBaseline() *PortfolioMetrics {
	metrics := &PortfolioMetrics{
		SkippedTrades: len(e.skipped),
		Trades:        make([]TradeResult, 0, len(e.trades)),
	}
	for _, lt := range e.trades {
		metrics.Trades = append(metrics.Trades, e.simulator.Baseline(lt))
	}
	metrics.UpdateMetrics()
	return metrics
}

// Excursion is the maximum favorable and adverse move of a trade, in
// percent of the entry price, over the bars it was open.
type Excursion struct {
	Num    int
	MFEPct float64
	MAEPct float64
	PnLPct float64
}

// Excursions measures MFE/MAE of every located trade from the candle highs
// and lows between entry and exit.
func (e *BacktestEngine) Excursions() []Excursion {
	candles := e.simulator.index.Candles()
	out := make([]Excursion, 0, len(e.trades))
	for _, lt := range e.trades {
		pair := lt.Pair
		hi, lo := pair.EntryPrice, pair.EntryPrice
		for i := lt.EntryIdx; i <= lt.ExitIdx; i++ {
			if candles[i].High > hi {
				hi = candles[i].High
			}
			if candles[i].Low < lo {
				lo = candles[i].Low
			}
		}
		ex := Excursion{Num: pair.Num, PnLPct: PnLPercent(pair.Side, pair.EntryPrice, pair.ExitPrice)}
		if pair.Side == types.SideShort {
			ex.MFEPct = PnLPercent(pair.Side, pair.EntryPrice, lo)
			ex.MAEPct = -PnLPercent(pair.Side, pair.EntryPrice, hi)
		} else {
			ex.MFEPct = PnLPercent(pair.Side, pair.EntryPrice, hi)
			ex.MAEPct = -PnLPercent(pair.Side, pair.EntryPrice, lo)
		}
		if ex.MFEPct < 0 {
			ex.MFEPct = 0
		}
		if ex.MAEPct < 0 {
			ex.MAEPct = 0
		}
		out = append(out, ex)
	}
	return out
}
