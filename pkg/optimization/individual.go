package optimization

import (
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// ParamIndividual is one overlay tuple in the genetic population
type ParamIndividual struct {
	params    backtest.Params
	fitness   float64
	results   *backtest.PortfolioMetrics
	evaluated bool
}

// NewParamIndividual creates an unevaluated individual
func NewParamIndividual(p backtest.Params) *ParamIndividual {
	return &ParamIndividual{params: p}
}

// GetParams returns the tuple
func (i *ParamIndividual) GetParams() backtest.Params {
	return i.params
}

// SetParams replaces the tuple and clears the evaluation
func (i *ParamIndividual) SetParams(p backtest.Params) {
	i.params = p
	i.Reset()
}

// GetFitness returns the fitness score for this individual
func (i *ParamIndividual) GetFitness() float64 {
	return i.fitness
}

// SetFitness sets the fitness score and marks the individual evaluated
func (i *ParamIndividual) SetFitness(fitness float64) {
	i.fitness = fitness
	i.evaluated = true
}

// GetResults returns the portfolio metrics for this individual
func (i *ParamIndividual) GetResults() *backtest.PortfolioMetrics {
	return i.results
}

// SetResults sets the portfolio metrics for this individual
func (i *ParamIndividual) SetResults(results *backtest.PortfolioMetrics) {
	i.results = results
}

// Evaluated reports whether fitness is current
func (i *ParamIndividual) Evaluated() bool {
	return i.evaluated
}

// Copy creates a copy sharing the read-only metrics
func (i *ParamIndividual) Copy() Individual {
	c := *i
	return &c
}

// Reset clears fitness and results for re-evaluation
func (i *ParamIndividual) Reset() {
	i.fitness = 0
	i.results = nil
	i.evaluated = false
}
