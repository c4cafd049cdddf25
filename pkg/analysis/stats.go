package analysis

import (
	"math"
	"sort"
)

// Percentiles reported for every series
var Percentiles = []int{5, 10, 25, 50, 75, 90, 95}

// Summary describes one sample series
type Summary struct {
	Count       int             `json:"count"`
	Mean        float64         `json:"mean"`
	Median      float64         `json:"median"`
	Std         float64         `json:"std"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Percentiles map[int]float64 `json:"percentiles"`
}

// P returns a reported percentile
func (s Summary) P(p int) float64 {
	return s.Percentiles[p]
}

// Summarize computes descriptive statistics. Std uses the sample
// denominator (n-1) and is 0 for fewer than two values.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values), Percentiles: make(map[int]float64, len(Percentiles))}
	if len(values) == 0 {
		for _, p := range Percentiles {
			s.Percentiles[p] = 0
		}
		return s
	}

	sorted := sortedCopy(values)
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	s.Mean = mean(sorted)
	s.Median = quantileSorted(sorted, 0.5)
	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			ss += (v - s.Mean) * (v - s.Mean)
		}
		s.Std = math.Sqrt(ss / float64(len(sorted)-1))
	}
	for _, p := range Percentiles {
		s.Percentiles[p] = quantileSorted(sorted, float64(p)/100)
	}
	return s
}

// Quantile returns the q-quantile with linear interpolation between the
// two closest ranks, 0 for an empty series
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return quantileSorted(sortedCopy(values), q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// round3 rounds half away from zero to three decimals
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
