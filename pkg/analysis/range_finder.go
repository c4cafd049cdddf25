package analysis

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// Floors and caps applied to recommendations
const (
	TP1Floor     = 2.0
	TP2Floor     = 4.0
	TP3Floor     = 6.0
	SLFloor      = 0.5
	BEFloor      = 0.5
	TSTriggerMin = 2.5
	TSStepFloor  = 0.2

	// DefaultMaxGridSize caps the balanced grid before steps are widened
	DefaultMaxGridSize = 5000
	// TypicalBlindGrid is the size of an uninformed 20x10x8x6 grid
	TypicalBlindGrid = 20 * 10 * 8 * 6

	smallSampleSize = 50
	extremeMovePct  = 100.0
	maxRangeValues  = 10
)

// Profile is a risk appetite for recommended ranges
type Profile string

const (
	Conservative Profile = "conservative"
	Balanced     Profile = "balanced"
	Aggressive   Profile = "aggressive"
)

// Profiles lists every profile in report order
var Profiles = []Profile{Conservative, Balanced, Aggressive}

// Sample is the excursion record of one trade, in percent
type Sample struct {
	Num      int     `json:"num"`
	RunUp    float64 `json:"run_up"`
	Drawdown float64 `json:"drawdown"`
	PnL      float64 `json:"pnl"`
}

// SamplesFromPairs builds samples from tradelist excursion columns. Pairs
// missing either excursion are skipped and counted.
func SamplesFromPairs(pairs []types.TradePair) ([]Sample, int) {
	out := make([]Sample, 0, len(pairs))
	missing := 0
	for _, p := range pairs {
		if p.RunUpPct == nil || p.DrawdownPct == nil {
			missing++
			continue
		}
		s := Sample{Num: p.Num, RunUp: math.Abs(*p.RunUpPct), Drawdown: math.Abs(*p.DrawdownPct)}
		if p.PnLPct != nil {
			s.PnL = *p.PnLPct
		} else {
			s.PnL = backtest.PnLPercent(p.Side, p.EntryPrice, p.ExitPrice)
		}
		out = append(out, s)
	}
	return out, missing
}

// SamplesFromExcursions builds samples from candle-measured MFE/MAE
func SamplesFromExcursions(ex []backtest.Excursion) []Sample {
	out := make([]Sample, len(ex))
	for i, e := range ex {
		out[i] = Sample{Num: e.Num, RunUp: math.Abs(e.MFEPct), Drawdown: math.Abs(e.MAEPct), PnL: e.PnLPct}
	}
	return out
}

// Options tunes the analyzer
type Options struct {
	MaxGridSize int
}

// Statistics groups the per-series summaries
type Statistics struct {
	RunUp        Summary `json:"runup"`
	Drawdown     Summary `json:"drawdown"`
	PnL          Summary `json:"pnl"`
	PositiveRate float64 `json:"positive_rate"`
}

// Behavior is one class of trades with similar excursion shape
type Behavior struct {
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
	AvgRunUp    float64 `json:"avg_runup"`
	AvgDrawdown float64 `json:"avg_drawdown"`
	Description string  `json:"description"`
}

// Scenario summarises the trades matching a risk profile
type Scenario struct {
	TradeCount      int     `json:"trade_count"`
	Percentage      float64 `json:"percentage"`
	TargetSLMax     float64 `json:"target_sl_max"`
	TargetBERange   float64 `json:"target_be_range"`
	TargetTSTrigger float64 `json:"target_ts_trigger"`
	Description     string  `json:"description"`
}

// ProfileRanges are the recommended ranges of one profile
type ProfileRanges struct {
	SL        optimization.ParamRange `json:"sl"`
	BE        optimization.ParamRange `json:"be"`
	TSTrigger optimization.ParamRange `json:"ts_trigger"`
	TSStep    optimization.ParamRange `json:"ts_step"`
}

// Space converts the ranges into a search space over every family
func (r ProfileRanges) Space() optimization.SearchSpace {
	return optimization.SearchSpace{
		SL:        r.SL,
		BE:        r.BE,
		TSTrigger: r.TSTrigger,
		TSStep:    r.TSStep,
		Selected:  optimization.AllParams,
	}
}

// Combinations counts grid points the way the analyzer reports them
func (r ProfileRanges) Combinations() int {
	return r.SL.Count() * r.BE.Count() * r.TSTrigger.Count() * r.TSStep.Count()
}

// TPLevels are suggested take-profit levels in percent
type TPLevels struct {
	TP1 float64 `json:"TP1"`
	TP2 float64 `json:"TP2"`
	TP3 float64 `json:"TP3"`
}

// Efficiency compares the recommended grids against a blind grid
type Efficiency struct {
	Combinations   map[Profile]int `json:"smart_combinations"`
	TotalSmart     int             `json:"total_smart"`
	TypicalBlind   int             `json:"typical_blind"`
	EfficiencyGain float64         `json:"efficiency_gain"`
}

// Analysis is the full result of a range analysis
type Analysis struct {
	TradeCount       int                       `json:"trade_count"`
	Statistics       Statistics                `json:"statistics"`
	Behaviors        map[string]Behavior       `json:"behaviors"`
	Scenarios        map[Profile]Scenario      `json:"scenarios"`
	Ranges           map[Profile]ProfileRanges `json:"recommended_ranges"`
	TPLevels         TPLevels                  `json:"tp_levels"`
	TPReachRates     map[string]float64        `json:"tp_reach_rates"`
	Efficiency       Efficiency                `json:"efficiency"`
	Warnings         []Warning                 `json:"warnings"`
	ValidationIssues []string                  `json:"validation_issues"`
}

// Recommendation is the final balanced suggestion
type Recommendation struct {
	Strategy          Profile            `json:"recommended_strategy"`
	Ranges            ProfileRanges      `json:"parameter_ranges"`
	TPLevels          TPLevels           `json:"tp_levels"`
	TPReachRates      map[string]float64 `json:"tp_reach_rates"`
	DataQualityIssues []string           `json:"data_quality_issues"`
	TradesAnalyzed    int                `json:"total_trades_analyzed"`
}

// ExportedRanges is the balanced profile ready to feed a search
type ExportedRanges struct {
	SL        optimization.ParamRange `json:"SL" yaml:"sl"`
	BE        optimization.ParamRange `json:"BE" yaml:"be"`
	TSTrigger optimization.ParamRange `json:"TS_trigger" yaml:"ts_trigger"`
	TSStep    optimization.ParamRange `json:"TS_step" yaml:"ts_step"`
	TPLevels  TPLevels                `json:"TP_levels" yaml:"tp_levels"`
}

// Space converts the export into a search space
func (e ExportedRanges) Space() optimization.SearchSpace {
	return ProfileRanges{SL: e.SL, BE: e.BE, TSTrigger: e.TSTrigger, TSStep: e.TSStep}.Space()
}

// RangeFinder derives overlay ranges from trade excursions
type RangeFinder struct {
	samples  []Sample
	opts     Options
	analysis *Analysis
}

// NewRangeFinder creates a finder over samples
func NewRangeFinder(samples []Sample, opts Options) *RangeFinder {
	if opts.MaxGridSize <= 0 {
		opts.MaxGridSize = DefaultMaxGridSize
	}
	return &RangeFinder{samples: samples, opts: opts}
}

// Analyze runs the analysis once and caches it
func (f *RangeFinder) Analyze() (*Analysis, error) {
	if f.analysis != nil {
		return f.analysis, nil
	}
	if len(f.samples) == 0 {
		return nil, opterrors.NewDataError("range_finder", "analyze", opterrors.ErrNoTrades).
			WithMessage("no excursion samples to analyze")
	}

	runup := make([]float64, len(f.samples))
	drawdown := make([]float64, len(f.samples))
	pnl := make([]float64, len(f.samples))
	for i, s := range f.samples {
		runup[i], drawdown[i], pnl[i] = s.RunUp, s.Drawdown, s.PnL
	}

	a := &Analysis{TradeCount: len(f.samples)}
	a.ValidationIssues = validate(runup, drawdown)
	a.Statistics = statistics(runup, drawdown, pnl)
	a.Behaviors = classifyBehaviors(runup, drawdown, pnl)
	a.Scenarios = mapScenarios(runup, drawdown)
	a.Ranges, a.Warnings = recommendRanges(a.Statistics)

	tp, tpWarnings := suggestTPLevels(a.Statistics.RunUp)
	a.TPLevels = tp
	a.Warnings = append(tpWarnings, a.Warnings...)
	a.TPReachRates = reachRates(runup, tp)

	if bal := a.Ranges[Balanced]; bal.Space().Size() > f.opts.MaxGridSize {
		widened, changed := bal.Space().WidenToFit(f.opts.MaxGridSize)
		if changed {
			a.Ranges[Balanced] = ProfileRanges{
				SL: widened.SL, BE: widened.BE, TSTrigger: widened.TSTrigger, TSStep: widened.TSStep,
			}
			msg := fmt.Sprintf("balanced grid %d exceeds max_grid_size %d; steps widened to %d combinations",
				bal.Space().Size(), f.opts.MaxGridSize, widened.Size())
			a.Warnings = append(a.Warnings, NewWarning(WarnInfo, float64(widened.Size()), msg))
		}
	}
	a.Efficiency = efficiency(a.Ranges)

	for _, w := range a.Warnings {
		log.Warn().Str("code", string(w.Code)).Float64("value", w.Value).Msg("⚠️ " + w.Message)
	}
	for _, issue := range a.ValidationIssues {
		log.Warn().Msg("⚠️ " + issue)
	}
	log.Info().
		Int("trades", a.TradeCount).
		Float64("runup_median", a.Statistics.RunUp.Median).
		Float64("drawdown_median", a.Statistics.Drawdown.Median).
		Float64("efficiency_gain", a.Efficiency.EfficiencyGain).
		Msg("🔍 range analysis complete")

	f.analysis = a
	return a, nil
}

// Recommend returns the balanced recommendation
func (f *RangeFinder) Recommend() (*Recommendation, error) {
	a, err := f.Analyze()
	if err != nil {
		return nil, err
	}
	return &Recommendation{
		Strategy:          Balanced,
		Ranges:            a.Ranges[Balanced],
		TPLevels:          a.TPLevels,
		TPReachRates:      a.TPReachRates,
		DataQualityIssues: a.ValidationIssues,
		TradesAnalyzed:    a.TradeCount,
	}, nil
}

// Export returns the balanced ranges and TP levels
func (f *RangeFinder) Export() (*ExportedRanges, error) {
	a, err := f.Analyze()
	if err != nil {
		return nil, err
	}
	bal := a.Ranges[Balanced]
	return &ExportedRanges{
		SL:        bal.SL,
		BE:        bal.BE,
		TSTrigger: bal.TSTrigger,
		TSStep:    bal.TSStep,
		TPLevels:  a.TPLevels,
	}, nil
}

func validate(runup, drawdown []float64) []string {
	var issues []string
	if len(runup) < smallSampleSize {
		issues = append(issues, fmt.Sprintf("Small sample size: %d trades (recommend >100)", len(runup)))
	}
	if n := countAbove(runup, extremeMovePct); n > 0 {
		issues = append(issues, fmt.Sprintf("%d trades with extreme run-ups (>100%%)", n))
	}
	if n := countAbove(drawdown, extremeMovePct); n > 0 {
		issues = append(issues, fmt.Sprintf("%d trades with extreme drawdowns (>100%%)", n))
	}
	return issues
}

func countAbove(values []float64, limit float64) int {
	n := 0
	for _, v := range values {
		if v > limit {
			n++
		}
	}
	return n
}

func statistics(runup, drawdown, pnl []float64) Statistics {
	st := Statistics{
		RunUp:    Summarize(runup),
		Drawdown: Summarize(drawdown),
		PnL:      Summarize(pnl),
	}
	if len(pnl) > 0 {
		st.PositiveRate = float64(countAbove(pnl, 0)) / float64(len(pnl)) * 100
	}
	return st
}

func suggestTPLevels(runup Summary) (TPLevels, []Warning) {
	var warnings []Warning
	p50, p75, p90 := runup.P(50), runup.P(75), runup.P(90)

	tp1 := math.Max(p50, TP1Floor)
	if tp1 != p50 {
		warnings = append(warnings, NewWarning(WarnTP1Floor, tp1,
			fmt.Sprintf("TP1 floored at %g%% (original p50=%.2f%%)", TP1Floor, p50)))
	}
	tp2 := math.Max(p75, TP2Floor)
	if tp2 != p75 {
		warnings = append(warnings, NewWarning(WarnTP2Floor, tp2,
			fmt.Sprintf("TP2 floored at %g%% (original p75=%.2f%%)", TP2Floor, p75)))
	}
	capped := math.Min(p90, 2*tp2)
	if capped != p90 {
		warnings = append(warnings, NewWarning(WarnTP3Cap, capped,
			fmt.Sprintf("TP3 capped to 2x TP2: p90=%.2f%% -> %.2f%%", p90, capped)))
	}
	tp3 := math.Max(capped, TP3Floor)
	if tp3 != capped {
		warnings = append(warnings, NewWarning(WarnTP3Cap, tp3,
			fmt.Sprintf("TP3 floored at %g%% (after cap, value=%.2f%%)", TP3Floor, capped)))
	}
	return TPLevels{TP1: round3(tp1), TP2: round3(tp2), TP3: round3(tp3)}, warnings
}

func reachRates(runup []float64, tp TPLevels) map[string]float64 {
	rates := map[string]float64{"TP1": 0, "TP2": 0, "TP3": 0}
	if len(runup) == 0 {
		return rates
	}
	for label, level := range map[string]float64{"TP1": tp.TP1, "TP2": tp.TP2, "TP3": tp.TP3} {
		n := 0
		for _, r := range runup {
			if r >= level {
				n++
			}
		}
		rates[label] = math.Round(float64(n)/float64(len(runup))*100*100) / 100
	}
	return rates
}

func classifyBehaviors(runup, drawdown, pnl []float64) map[string]Behavior {
	ruQ75, ruQ50, ruQ40 := Quantile(runup, 0.75), Quantile(runup, 0.5), Quantile(runup, 0.4)
	ddQ75, ddQ60 := Quantile(drawdown, 0.75), Quantile(drawdown, 0.6)

	build := func(desc string, match func(i int) bool) Behavior {
		b := Behavior{Description: desc}
		var sumRU, sumDD float64
		for i := range runup {
			if match(i) {
				b.Count++
				sumRU += runup[i]
				sumDD += drawdown[i]
			}
		}
		b.Percentage = float64(b.Count) / float64(len(runup)) * 100
		if b.Count > 0 {
			b.AvgRunUp = sumRU / float64(b.Count)
			b.AvgDrawdown = sumDD / float64(b.Count)
		}
		return b
	}

	return map[string]Behavior{
		"trending_winners": build("Strong trends with good profits - consider wider TS", func(i int) bool {
			return runup[i] > ruQ75 && pnl[i] > 0
		}),
		"volatile_winners": build("High volatility but profitable - wider SL ranges", func(i int) bool {
			return drawdown[i] > ddQ75 && pnl[i] > 0
		}),
		"quick_losers": build("Fast losses - SL should catch these early", func(i int) bool {
			return drawdown[i] > ddQ60 && runup[i] < ruQ40 && pnl[i] <= 0
		}),
		"near_miss_losers": build("Had potential but failed - BE/TS could help", func(i int) bool {
			return runup[i] > ruQ50 && pnl[i] <= 0
		}),
	}
}

func subset(values []float64, keep func(i int) bool) []float64 {
	var out []float64
	for i, v := range values {
		if keep(i) {
			out = append(out, v)
		}
	}
	return out
}

func mapScenarios(runup, drawdown []float64) map[Profile]Scenario {
	n := float64(len(drawdown))
	ddQ30, ddQ60, ddQ70, ddQ80 := Quantile(drawdown, 0.3), Quantile(drawdown, 0.6), Quantile(drawdown, 0.7), Quantile(drawdown, 0.8)
	ruQ60 := Quantile(runup, 0.6)

	consDD := subset(drawdown, func(i int) bool { return drawdown[i] <= ddQ60 })
	consRU := subset(runup, func(i int) bool { return runup[i] <= ruQ60 })
	balMask := func(i int) bool { return drawdown[i] > ddQ30 && drawdown[i] <= ddQ80 }
	aggrMask := func(i int) bool { return drawdown[i] > ddQ70 }
	balDD, balRU := subset(drawdown, balMask), subset(runup, balMask)
	aggrDD, aggrRU := subset(drawdown, aggrMask), subset(runup, aggrMask)

	return map[Profile]Scenario{
		Conservative: {
			TradeCount:      len(consDD),
			Percentage:      float64(len(consDD)) / n * 100,
			TargetSLMax:     Quantile(consDD, 0.8),
			TargetBERange:   Quantile(consRU, 0.3),
			TargetTSTrigger: Quantile(consRU, 0.5),
			Description:     "Lower risk tolerance - tight parameters",
		},
		Balanced: {
			TradeCount:      len(balDD),
			Percentage:      float64(len(balDD)) / n * 100,
			TargetSLMax:     Quantile(balDD, 0.85),
			TargetBERange:   Quantile(balRU, 0.4),
			TargetTSTrigger: Quantile(balRU, 0.6),
			Description:     "Standard risk-reward balance",
		},
		Aggressive: {
			TradeCount:      len(aggrDD),
			Percentage:      float64(len(aggrDD)) / n * 100,
			TargetSLMax:     Quantile(aggrDD, 0.9),
			TargetBERange:   Quantile(aggrRU, 0.25),
			TargetTSTrigger: Quantile(aggrRU, 0.75),
			Description:     "Higher risk for higher potential reward",
		},
	}
}

// rangeSpec is the input of robustRange
type rangeSpec struct {
	min, max         float64
	minStep, maxStep float64
	hardMin, hardMax float64
}

// robustRange builds a range of three to ten values inside hard bounds.
// The step stays within [minStep, maxStep].
func robustRange(s rangeSpec) optimization.ParamRange {
	lo := math.Max(s.min, s.hardMin)
	hi := math.Min(s.max, s.hardMax)

	n := int((hi-lo)/s.minStep) + 1
	if n > 5 {
		n = 5
	}
	if n < 3 {
		n = 3
	}
	step := (hi - lo) / float64(n-1)
	step = math.Max(s.minStep, math.Min(step, s.maxStep))
	if n = int((hi-lo)/step) + 1; n > maxRangeValues {
		step = (hi - lo) / float64(maxRangeValues-1)
	}
	return optimization.ParamRange{Min: round3(lo), Max: round3(hi), Step: round3(step)}
}

// applyFloor raises a range whose raw lower candidate sits below floor
func applyFloor(r optimization.ParamRange, candidate, floor float64) (optimization.ParamRange, bool, float64) {
	if candidate >= floor {
		return r, false, r.Min
	}
	old := r.Min
	r.Min = round3(floor)
	if r.Max < r.Min {
		r.Max = round3(r.Min + r.Step)
	}
	return r, true, old
}

func recommendRanges(st Statistics) (map[Profile]ProfileRanges, []Warning) {
	dd, ru := st.Drawdown, st.RunUp

	slCand := map[Profile]float64{Conservative: dd.P(10), Balanced: dd.P(50), Aggressive: dd.P(75)}
	slSpec := map[Profile]rangeSpec{
		Conservative: {slCand[Conservative], dd.P(50), 0.2, 2.0, SLFloor, 50},
		Balanced:     {slCand[Balanced], dd.P(75), 0.2, 2.0, SLFloor, 50},
		Aggressive:   {slCand[Aggressive], dd.P(95), 0.5, 5.0, SLFloor, 50},
	}

	beCand := map[Profile]float64{Conservative: ru.P(10) * 0.5, Balanced: ru.P(25) * 0.8, Aggressive: ru.P(50) * 0.9}
	beSpec := map[Profile]rangeSpec{
		Conservative: {beCand[Conservative], ru.P(25) * 0.8, 0.05, 1.0, BEFloor, 10},
		Balanced:     {beCand[Balanced], ru.P(50) * 0.9, 0.05, 1.0, BEFloor, 10},
		Aggressive:   {beCand[Aggressive], ru.P(95) * 0.95, 0.1, 2.0, BEFloor, 10},
	}

	tsCand := map[Profile]float64{Conservative: ru.P(10), Balanced: ru.P(25), Aggressive: ru.P(75)}
	tsSpec := map[Profile]rangeSpec{
		Conservative: {tsCand[Conservative], ru.P(50), 0.1, 2.0, TSTriggerMin, 20},
		Balanced:     {tsCand[Balanced], ru.P(75), 0.1, 2.0, TSTriggerMin, 20},
		Aggressive:   {tsCand[Aggressive], ru.P(95), 0.2, 5.0, TSTriggerMin, 20},
	}

	stepCand := ru.P(5) * 0.2
	stepMin := math.Max(TSStepFloor, stepCand)
	stepMax := math.Max(stepMin*2, ru.P(25)*0.3)
	stepSpec := map[Profile]rangeSpec{
		Conservative: {stepMin, stepMax, TSStepFloor, 1.0, TSStepFloor, 5},
		Balanced:     {stepMin, stepMax * 1.5, TSStepFloor, 1.5, TSStepFloor, 5},
		Aggressive:   {stepMin, math.Min(5, stepMax*2), TSStepFloor, 2.0, TSStepFloor, 5},
	}

	ranges := make(map[Profile]ProfileRanges, len(Profiles))
	var warnings []Warning
	floor := func(code WarningCode, label string, p Profile, r optimization.ParamRange, cand, fl float64) optimization.ParamRange {
		r, applied, old := applyFloor(r, cand, fl)
		if applied {
			msg := fmt.Sprintf("%s %s: min %g -> %g (floor %g%% applied)", label, p, old, r.Min, fl)
			warnings = append(warnings, NewWarning(code, r.Min, msg))
		}
		return r
	}

	for _, p := range Profiles {
		pr := ProfileRanges{
			SL:        robustRange(slSpec[p]),
			BE:        robustRange(beSpec[p]),
			TSTrigger: robustRange(tsSpec[p]),
			TSStep:    sanitizeStep(robustRange(stepSpec[p])),
		}
		pr.SL = floor(WarnSLFloor, "SL", p, pr.SL, slCand[p], SLFloor)
		pr.BE = floor(WarnBEFloor, "BE", p, pr.BE, beCand[p], BEFloor)
		pr.TSTrigger = floor(WarnTSTriggerFloor, "TS", p, pr.TSTrigger, tsCand[p], TSTriggerMin)
		pr.TSStep = floor(WarnTSStepFloor, "TS-Step", p, pr.TSStep, stepCand, TSStepFloor)
		if pr.TSStep.Step < TSStepFloor {
			pr.TSStep.Step = TSStepFloor
		}

		pr.SL = fixInverted(pr.SL)
		pr.BE = fixInverted(pr.BE)
		pr.TSTrigger = fixInverted(pr.TSTrigger)
		ranges[p] = pr
	}
	return ranges, warnings
}

// sanitizeStep keeps a trailing step range non-empty with a usable step
func sanitizeStep(r optimization.ParamRange) optimization.ParamRange {
	if r.Max-r.Min <= 0 {
		r.Max = round3(r.Min + TSStepFloor)
	}
	if width := r.Max - r.Min; r.Step > width {
		r.Step = round3(math.Max(TSStepFloor, width/2))
	}
	return r
}

// fixInverted handles percentiles that all sit beyond the hard maximum
func fixInverted(r optimization.ParamRange) optimization.ParamRange {
	if r.Max < r.Min {
		r.Max = r.Min
	}
	return r
}

func efficiency(ranges map[Profile]ProfileRanges) Efficiency {
	e := Efficiency{Combinations: make(map[Profile]int, len(Profiles)), TypicalBlind: TypicalBlindGrid}
	for _, p := range Profiles {
		c := ranges[p].Combinations()
		e.Combinations[p] = c
		e.TotalSmart += c
	}
	if e.TotalSmart > 0 {
		e.EfficiencyGain = float64(e.TypicalBlind) / float64(e.TotalSmart)
	}
	return e
}
