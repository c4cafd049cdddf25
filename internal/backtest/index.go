package backtest

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// CandleIndex maps exact bar timestamps to their position in the series.
// It is built once per run and is safe for concurrent reads.
type CandleIndex struct {
	candles []types.OHLCV
	byTime  map[int64]int
}

// NewCandleIndex builds the index and rejects unsorted or duplicate bars
func NewCandleIndex(candles []types.OHLCV) (*CandleIndex, error) {
	idx := &CandleIndex{
		candles: candles,
		byTime:  make(map[int64]int, len(candles)),
	}
	for i, c := range candles {
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return nil, fmt.Errorf("candle %d at %s is not after %s", i, c.Timestamp, candles[i-1].Timestamp)
		}
		idx.byTime[c.Timestamp.UnixNano()] = i
	}
	return idx, nil
}

// Lookup returns the bar whose time equals t. ok is false before the first
// bar, after the last one, or inside a gap.
func (ci *CandleIndex) Lookup(t time.Time) (int, bool) {
	if len(ci.candles) == 0 {
		return -1, false
	}
	i, ok := ci.byTime[t.UnixNano()]
	if !ok {
		return -1, false
	}
	return i, true
}

// Candles returns the indexed series. Callers must not modify it.
func (ci *CandleIndex) Candles() []types.OHLCV {
	return ci.candles
}

// Len returns the number of bars
func (ci *CandleIndex) Len() int {
	return len(ci.candles)
}

// Range returns the first and last bar times
func (ci *CandleIndex) Range() (time.Time, time.Time) {
	if len(ci.candles) == 0 {
		return time.Time{}, time.Time{}
	}
	return ci.candles[0].Timestamp, ci.candles[len(ci.candles)-1].Timestamp
}
