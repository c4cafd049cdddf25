package backtest

import (
	"fmt"
	"math"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// SimulatorOptions tunes execution realism of the replay
type SimulatorOptions struct {
	// Slippage is an adverse percent applied to triggered stop fills
	Slippage float64
	// DojiRatio is the body/range ratio treated as a doji bar
	DojiRatio float64
	// BreakEvenOffset moves the break-even stop this many percent past
	// entry against the trade. Zero means exact break-even.
	BreakEvenOffset float64
}

// LocatedTrade is a trade pair resolved against the candle index
type LocatedTrade struct {
	Pair     types.TradePair
	EntryIdx int
	ExitIdx  int
}

// Simulator replays trade pairs bar by bar under an overlay tuple. It holds
// only read-only state and is safe for concurrent use.
type Simulator struct {
	index *CandleIndex
	opts  SimulatorOptions
}

// NewSimulator creates a simulator over an indexed candle series
func NewSimulator(index *CandleIndex, opts SimulatorOptions) *Simulator {
	if opts.DojiRatio <= 0 {
		opts.DojiRatio = DefaultDojiRatio
	}
	return &Simulator{index: index, opts: opts}
}

// Options returns the simulator options
func (s *Simulator) Options() SimulatorOptions {
	return s.opts
}

// Locate resolves the entry and exit bars of a pair. It fails for malformed
// pairs and for timestamps that do not land exactly on a bar.
func (s *Simulator) Locate(pair types.TradePair) (LocatedTrade, error) {
	if err := pair.Validate(); err != nil {
		return LocatedTrade{}, opterrors.NewTradeError("simulator", pair.Num, err)
	}
	entryIdx, ok := s.index.Lookup(pair.EntryTime)
	if !ok {
		return LocatedTrade{}, opterrors.NewTradeError("simulator", pair.Num, opterrors.ErrCandleNotFound).
			WithContext("entry", pair.EntryTime)
	}
	exitIdx, ok := s.index.Lookup(pair.ExitTime)
	if !ok {
		return LocatedTrade{}, opterrors.NewTradeError("simulator", pair.Num, opterrors.ErrCandleNotFound).
			WithContext("exit", pair.ExitTime)
	}
	if exitIdx <= entryIdx {
		return LocatedTrade{}, opterrors.NewTradeError("simulator", pair.Num,
			fmt.Errorf("exit bar %d not after entry bar %d", exitIdx, entryIdx))
	}
	return LocatedTrade{Pair: pair, EntryIdx: entryIdx, ExitIdx: exitIdx}, nil
}

// SimulateTrade locates and replays a single pair. A panic while replaying
// is converted into a trade error so the caller can skip the trade.
func (s *Simulator) SimulateTrade(pair types.TradePair, p Params) (res TradeResult, err error) {
	lt, err := s.Locate(pair)
	if err != nil {
		return TradeResult{}, err
	}
	return s.SafeSimulate(lt, p)
}

// SafeSimulate replays a located trade and recovers from panics
func (s *Simulator) SafeSimulate(lt LocatedTrade, p Params) (res TradeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opterrors.NewTradeError("simulator", lt.Pair.Num, fmt.Errorf("panic: %v", r))
		}
	}()
	return s.Simulate(lt, p), nil
}

// Baseline replays a located trade without any overlay and labels it Original
func (s *Simulator) Baseline(lt LocatedTrade) TradeResult {
	pair := lt.Pair
	origin := PnLPercent(pair.Side, pair.EntryPrice, pair.ExitPrice)
	return TradeResult{
		Num:          pair.Num,
		Side:         pair.Side,
		EntryTime:    pair.EntryTime,
		ExitTime:     pair.ExitTime,
		EntryPrice:   pair.EntryPrice,
		ExitPrice:    pair.ExitPrice,
		ExitType:     ExitOriginal,
		PnLPct:       origin,
		PnLPctOrigin: origin,
		BarsHeld:     lt.ExitIdx - lt.EntryIdx,
	}
}

// overlayState is the per-trade state machine
type overlayState struct {
	long      bool
	entry     float64
	hasStop   bool
	activeSL  float64
	beArmed   bool
	tsArmed   bool
	beTrigger float64
	tsTrigger float64
	beStop    float64
}

// adverse reports whether price crossed stop against the position
func (st *overlayState) adverse(price, stop float64) bool {
	if st.long {
		return price < stop
	}
	return price > stop
}

// favorable reports whether price reached a trigger in the trade's favor
func (st *overlayState) favorable(price, trigger float64) bool {
	if st.long {
		return price >= trigger
	}
	return price <= trigger
}

// tighten moves the stop toward the price, never away from it
func (st *overlayState) tighten(candidate float64) {
	if !st.hasStop {
		st.activeSL = candidate
		st.hasStop = true
		return
	}
	if st.long {
		st.activeSL = math.Max(st.activeSL, candidate)
	} else {
		st.activeSL = math.Min(st.activeSL, candidate)
	}
}

// Simulate replays a located trade under p. Bars from the entry bar to the
// exit bar inclusive are probed along PricePath; the entry bar starts at the
// entry price.
func (s *Simulator) Simulate(lt LocatedTrade, p Params) TradeResult {
	pair := lt.Pair
	entry := pair.EntryPrice
	st := &overlayState{long: pair.Side == types.SideLong, entry: entry}

	sign := 1.0
	if !st.long {
		sign = -1.0
	}
	if p.SLEnabled() {
		st.activeSL = entry * (1 - sign*p.SL/100)
		st.hasStop = true
	}
	if p.BEEnabled() {
		st.beTrigger = entry * (1 + sign*p.BE/100)
		st.beStop = entry * (1 - sign*s.opts.BreakEvenOffset/100)
	}
	if p.TSEnabled() {
		st.tsTrigger = entry * (1 + sign*p.TSTrigger/100)
	}

	result := TradeResult{
		Num:          pair.Num,
		Side:         pair.Side,
		EntryTime:    pair.EntryTime,
		EntryPrice:   entry,
		PnLPctOrigin: PnLPercent(pair.Side, entry, pair.ExitPrice),
		Params:       p,
	}

	candles := s.index.Candles()
	for i := lt.EntryIdx; i <= lt.ExitIdx; i++ {
		path := PricePath(candles[i], s.opts.DojiRatio)
		if i == lt.EntryIdx {
			path[0] = entry
		}
		for _, price := range path {
			exitType, hit := s.step(st, p, price)
			if !hit {
				continue
			}
			result.ExitTime = candles[i].Timestamp
			result.ExitPrice = s.fill(st)
			result.ExitType = exitType
			result.BarsHeld = i - lt.EntryIdx
			result.BEArmed = st.beArmed
			result.TSArmed = st.tsArmed
			result.PnLPct = PnLPercent(pair.Side, entry, result.ExitPrice)
			return result
		}
	}

	result.ExitTime = pair.ExitTime
	result.ExitPrice = pair.ExitPrice
	result.ExitType = ExitSignal
	result.BarsHeld = lt.ExitIdx - lt.EntryIdx
	result.BEArmed = st.beArmed
	result.TSArmed = st.tsArmed
	result.PnLPct = result.PnLPctOrigin
	return result
}

// step applies the overlay rules at one probed price
func (s *Simulator) step(st *overlayState, p Params, price float64) (ExitType, bool) {
	// 1. fixed stop, only while nothing is armed
	if !st.beArmed && !st.tsArmed && st.hasStop && st.adverse(price, st.activeSL) {
		return ExitSL, true
	}

	// 2. break-even arming
	if p.BEEnabled() && !st.beArmed && st.favorable(price, st.beTrigger) {
		st.beArmed = true
		st.tighten(st.beStop)
	}

	// 3. trailing stop arming
	if p.TSEnabled() && !st.tsArmed && st.favorable(price, st.tsTrigger) {
		st.tsArmed = true
		st.tighten(st.entry)
	}

	// 4. trailing
	if st.tsArmed {
		if st.long {
			st.tighten(price * (1 - p.TSStep/100))
		} else {
			st.tighten(price * (1 + p.TSStep/100))
		}
	}

	// 5. armed stop
	if (st.beArmed || st.tsArmed) && st.hasStop && st.adverse(price, st.activeSL) {
		if st.tsArmed {
			return ExitTS, true
		}
		return ExitBESL, true
	}
	return "", false
}

// fill returns the stop fill price after slippage
func (s *Simulator) fill(st *overlayState) float64 {
	if s.opts.Slippage <= 0 {
		return st.activeSL
	}
	if st.long {
		return st.activeSL * (1 - s.opts.Slippage/100)
	}
	return st.activeSL * (1 + s.opts.Slippage/100)
}
