package backtest

import (
	"math"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// DefaultDojiRatio is the body/range ratio under which a bar is a doji
const DefaultDojiRatio = 0.1

// PricePath returns the ordered reference prices used to probe one bar.
//
// OHLC does not say whether the high or the low printed first, so the
// simulator commits to a fixed path:
//
//	bullish body (close > open): open -> low  -> high -> close
//	bearish body (close < open): open -> high -> low  -> close
//	doji (body/range < ratio):   open -> high -> low  -> close
//
// Borderline outcomes depend on this rule.
func PricePath(c types.OHLCV, dojiRatio float64) [4]float64 {
	if isDoji(c, dojiRatio) || c.Close <= c.Open {
		return [4]float64{c.Open, c.High, c.Low, c.Close}
	}
	return [4]float64{c.Open, c.Low, c.High, c.Close}
}

func isDoji(c types.OHLCV, ratio float64) bool {
	rng := c.High - c.Low
	if rng <= 0 {
		return true
	}
	return math.Abs(c.Close-c.Open)/rng < ratio
}
