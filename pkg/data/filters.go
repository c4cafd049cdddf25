package data

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// SelectionMode orders trades before offset and limit apply
type SelectionMode string

const (
	SelectSequence SelectionMode = "sequence"
	SelectTime     SelectionMode = "time"
	SelectRandom   SelectionMode = "random"
)

// ParseSelectionMode parses a selection mode, defaulting empty input to sequence
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SelectSequence:
		return SelectSequence, nil
	case SelectTime:
		return SelectTime, nil
	case SelectRandom:
		return SelectRandom, nil
	}
	return "", fmt.Errorf("unknown trade selection mode %q", s)
}

// Selection picks a subset of trades. Offset is 1-based; a negative
// offset keeps the last |Offset| trades. Limit 0 means unlimited.
type Selection struct {
	Mode   SelectionMode
	Offset int
	Limit  int
	Seed   int64
}

// SelectTrades orders, offsets and limits trade pairs. The input slice is
// never modified.
func SelectTrades(pairs []types.TradePair, sel Selection) []types.TradePair {
	if len(pairs) == 0 {
		return nil
	}

	sorted := make([]types.TradePair, len(pairs))
	copy(sorted, pairs)

	byNum := func(i, j int) bool { return sorted[i].Num < sorted[j].Num }
	switch sel.Mode {
	case SelectTime:
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].EntryTime.Equal(sorted[j].EntryTime) {
				return sorted[i].Num < sorted[j].Num
			}
			return sorted[i].EntryTime.Before(sorted[j].EntryTime)
		})
	case SelectRandom:
		sort.SliceStable(sorted, byNum)
		rng := rand.New(rand.NewSource(sel.Seed))
		rng.Shuffle(len(sorted), func(i, j int) { sorted[i], sorted[j] = sorted[j], sorted[i] })
	default:
		sort.SliceStable(sorted, byNum)
	}

	total := len(sorted)
	switch {
	case sel.Offset < 0:
		start := total + sel.Offset
		if start < 0 {
			start = 0
		}
		sorted = sorted[start:]
	case sel.Offset > 1:
		if sel.Offset-1 >= total {
			return []types.TradePair{}
		}
		sorted = sorted[sel.Offset-1:]
	}

	if sel.Limit > 0 && len(sorted) > sel.Limit {
		sorted = sorted[:sel.Limit]
	}
	return sorted
}

// ValidateCandles ensures candles are in strictly increasing time order with
// usable prices
func ValidateCandles(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no candles")
	}

	for i, c := range data {
		if c.High < c.Low || c.Open <= 0 || c.Close <= 0 || c.Low <= 0 {
			return fmt.Errorf("invalid candle at index %d (%s): o=%v h=%v l=%v c=%v",
				i, c.Timestamp.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
		}
		if i == 0 {
			continue
		}
		prev := data[i-1].Timestamp
		if c.Timestamp.Equal(prev) {
			return fmt.Errorf("duplicate timestamp at index %d: %s", i, c.Timestamp.Format(time.RFC3339))
		}
		if c.Timestamp.Before(prev) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, c.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
	}
	return nil
}

// FilterByDateRange returns the candles within [start, end] using binary
// search on the sorted series. The result shares the input's backing array.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	if len(data) == 0 || end.Before(start) {
		return nil
	}
	lo := sort.Search(len(data), func(i int) bool { return !data[i].Timestamp.Before(start) })
	hi := sort.Search(len(data), func(i int) bool { return data[i].Timestamp.After(end) })
	if lo >= hi {
		return nil
	}
	return data[lo:hi]
}

// TradeWindow returns the earliest entry and latest exit among pairs
func TradeWindow(pairs []types.TradePair) (time.Time, time.Time, bool) {
	if len(pairs) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last := pairs[0].EntryTime, pairs[0].ExitTime
	for _, p := range pairs[1:] {
		if p.EntryTime.Before(first) {
			first = p.EntryTime
		}
		if p.ExitTime.After(last) {
			last = p.ExitTime
		}
	}
	return first, last, true
}
