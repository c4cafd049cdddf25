package optimization

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// valuePrecision is the number of decimals grid values are rounded to
const valuePrecision = 6

// ParamRange is an inclusive [Min, Max] range walked by Step. [0, 0] is a
// single disabled value.
type ParamRange struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

// Fixed returns a single-value range
func Fixed(v float64) ParamRange {
	return ParamRange{Min: v, Max: v}
}

// Validate checks ordering and sign
func (r ParamRange) Validate(name string) error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%s: negative bound (min=%g max=%g)", name, r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s: min %g greater than max %g", name, r.Min, r.Max)
	}
	if r.Max > r.Min && r.Step <= 0 {
		return fmt.Errorf("%s: step must be positive for a non-degenerate range", name)
	}
	return nil
}

// IsFixed reports whether the range holds one value
func (r ParamRange) IsFixed() bool {
	return r.Max <= r.Min || r.Step <= 0
}

// Values enumerates the range with decimal stepping so that accumulated
// float error neither drops nor duplicates the upper bound
func (r ParamRange) Values() []float64 {
	if r.IsFixed() {
		return []float64{round(r.Min)}
	}
	minD := decimal.NewFromFloat(r.Min)
	maxD := decimal.NewFromFloat(r.Max)
	step := decimal.NewFromFloat(r.Step)
	eps := decimal.New(1, -9)

	var out []float64
	for v := minD; v.LessThanOrEqual(maxD.Add(eps)); v = v.Add(step) {
		out = append(out, v.Round(valuePrecision).InexactFloat64())
	}
	return out
}

// Count returns len(Values()) without allocating
func (r ParamRange) Count() int {
	if r.IsFixed() {
		return 1
	}
	return int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
}

// Snap rounds v to the nearest step from Min and clamps it into the range
func (r ParamRange) Snap(v float64) float64 {
	if r.IsFixed() {
		return round(r.Min)
	}
	steps := decimal.NewFromFloat((v - r.Min) / r.Step).Round(0)
	snapped := decimal.NewFromFloat(r.Min).Add(steps.Mul(decimal.NewFromFloat(r.Step)))
	out := snapped.Round(valuePrecision).InexactFloat64()
	if out < r.Min {
		out = r.Min
	}
	if out > r.Max {
		out = r.Max
	}
	return round(out)
}

// String formats the range for logs
func (r ParamRange) String() string {
	if r.IsFixed() {
		return fmt.Sprintf("%g", r.Min)
	}
	return fmt.Sprintf("%g..%g/%g", r.Min, r.Max, r.Step)
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(valuePrecision).InexactFloat64()
}

// ParamSelection enables overlay families. A disabled family is forced to 0.
type ParamSelection struct {
	SL bool `json:"sl"`
	BE bool `json:"be"`
	TS bool `json:"ts"`
}

// AllParams enables every family
var AllParams = ParamSelection{SL: true, BE: true, TS: true}

// ParseParamSelection parses a list such as "sl,be,ts". Empty input enables
// every family.
func ParseParamSelection(items []string) (ParamSelection, error) {
	if len(items) == 0 {
		return AllParams, nil
	}
	var sel ParamSelection
	for _, item := range items {
		for _, name := range strings.Split(item, ",") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "sl":
				sel.SL = true
			case "be":
				sel.BE = true
			case "ts", "ts_trig", "ts_step":
				sel.TS = true
			case "":
			default:
				return ParamSelection{}, fmt.Errorf("unknown parameter family %q", name)
			}
		}
	}
	return sel, nil
}

// Names lists enabled families
func (s ParamSelection) Names() []string {
	var names []string
	if s.SL {
		names = append(names, "sl")
	}
	if s.BE {
		names = append(names, "be")
	}
	if s.TS {
		names = append(names, "ts")
	}
	return names
}

// SearchSpace is the four ranges plus the family selection
type SearchSpace struct {
	SL        ParamRange     `json:"sl" yaml:"sl"`
	BE        ParamRange     `json:"be" yaml:"be"`
	TSTrigger ParamRange     `json:"ts_trigger" yaml:"ts_trigger"`
	TSStep    ParamRange     `json:"ts_step" yaml:"ts_step"`
	Selected  ParamSelection `json:"selected" yaml:"-"`
}

// DefaultSearchSpace returns the default optimization ranges
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		SL:        ParamRange{Min: 0.5, Max: 5.0, Step: 0.5},
		BE:        ParamRange{Min: 0.5, Max: 2.0, Step: 0.5},
		TSTrigger: ParamRange{Min: 2.0, Max: 3.0, Step: 0.5},
		TSStep:    ParamRange{Min: 0.2, Max: 1.0, Step: 0.2},
		Selected:  AllParams,
	}
}

// Effective returns the ranges after disabled families are forced to 0
func (s SearchSpace) Effective() SearchSpace {
	out := s
	if !s.Selected.SL {
		out.SL = Fixed(0)
	}
	if !s.Selected.BE {
		out.BE = Fixed(0)
	}
	if !s.Selected.TS {
		out.TSTrigger = Fixed(0)
		out.TSStep = Fixed(0)
	}
	return out
}

// Validate checks every range
func (s SearchSpace) Validate() error {
	eff := s.Effective()
	for name, r := range map[string]ParamRange{
		"sl": eff.SL, "be": eff.BE, "ts_trigger": eff.TSTrigger, "ts_step": eff.TSStep,
	} {
		if err := r.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of grid tuples before validation
func (s SearchSpace) Size() int {
	eff := s.Effective()
	return eff.SL.Count() * eff.BE.Count() * eff.TSTrigger.Count() * eff.TSStep.Count()
}

// Grid enumerates the cartesian product in (SL, BE, TSTrigger, TSStep)
// order and splits it into valid tuples and the count of rejected ones
func (s SearchSpace) Grid() ([]backtest.Params, int) {
	eff := s.Effective()
	sls, bes := eff.SL.Values(), eff.BE.Values()
	trigs, steps := eff.TSTrigger.Values(), eff.TSStep.Values()

	params := make([]backtest.Params, 0, len(sls)*len(bes)*len(trigs)*len(steps))
	rejected := 0
	for _, sl := range sls {
		for _, be := range bes {
			for _, trig := range trigs {
				for _, step := range steps {
					p := backtest.Params{SL: sl, BE: be, TSTrigger: trig, TSStep: step}
					if p.Validate() != nil {
						rejected++
						continue
					}
					params = append(params, p)
				}
			}
		}
	}
	return params, rejected
}

// Clamp snaps a tuple onto the search space
func (s SearchSpace) Clamp(p backtest.Params) backtest.Params {
	eff := s.Effective()
	return backtest.Params{
		SL:        eff.SL.Snap(p.SL),
		BE:        eff.BE.Snap(p.BE),
		TSTrigger: eff.TSTrigger.Snap(p.TSTrigger),
		TSStep:    eff.TSStep.Snap(p.TSStep),
	}
}

// WidenToFit scales every non-fixed step by the same factor until the
// grid holds at most maxSize tuples. It reports whether anything changed.
func (s SearchSpace) WidenToFit(maxSize int) (SearchSpace, bool) {
	if maxSize <= 0 || s.Size() <= maxSize {
		return s, false
	}
	out := s
	for factor := 1.25; out.Size() > maxSize && factor < 1e6; factor *= 1.25 {
		out.SL = widen(s.SL, factor)
		out.BE = widen(s.BE, factor)
		out.TSTrigger = widen(s.TSTrigger, factor)
		out.TSStep = widen(s.TSStep, factor)
	}
	return out, true
}

func widen(r ParamRange, factor float64) ParamRange {
	if r.IsFixed() {
		return r
	}
	r.Step = round(r.Step * factor)
	return r
}
