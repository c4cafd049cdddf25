package optimization

import (
	"math/rand"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// ParamGeneticOperator implements genetic operations over the four
// overlay parameters. Every produced tuple lies on the search grid.
type ParamGeneticOperator struct {
	space SearchSpace
}

// NewParamGeneticOperator creates an operator bound to a search space
func NewParamGeneticOperator(space SearchSpace) *ParamGeneticOperator {
	return &ParamGeneticOperator{space: space.Effective()}
}

// Random draws a tuple uniformly from the grid values of each range
func (op *ParamGeneticOperator) Random(rng *rand.Rand) backtest.Params {
	return backtest.Params{
		SL:        randomChoice(op.space.SL.Values(), rng),
		BE:        randomChoice(op.space.BE.Values(), rng),
		TSTrigger: randomChoice(op.space.TSTrigger.Values(), rng),
		TSStep:    randomChoice(op.space.TSStep.Values(), rng),
	}
}

// Crossover creates a child from two parents with uniform gene mixing
func (op *ParamGeneticOperator) Crossover(parent1, parent2 Individual, rate float64, rng *rand.Rand) Individual {
	p1, p2 := parent1.GetParams(), parent2.GetParams()
	child := p1

	if rng.Float64() < rate {
		if rng.Intn(2) == 1 {
			child.SL = p2.SL
		}
		if rng.Intn(2) == 1 {
			child.BE = p2.BE
		}
		// trigger and step form one gene
		if rng.Intn(2) == 1 {
			child.TSTrigger = p2.TSTrigger
			child.TSStep = p2.TSStep
		}
	}

	return NewParamIndividual(child)
}

// Mutate nudges one gene by one grid step or redraws it
func (op *ParamGeneticOperator) Mutate(individual Individual, rate float64, rng *rand.Rand) {
	if rng.Float64() >= rate {
		return
	}

	p := individual.GetParams()
	switch rng.Intn(4) {
	case 0:
		p.SL = op.nudge(op.space.SL, p.SL, rng)
	case 1:
		p.BE = op.nudge(op.space.BE, p.BE, rng)
	case 2:
		p.TSTrigger = op.nudge(op.space.TSTrigger, p.TSTrigger, rng)
	default:
		p.TSStep = op.nudge(op.space.TSStep, p.TSStep, rng)
	}
	individual.SetParams(p)
}

// Select chooses an individual using tournament selection
func (op *ParamGeneticOperator) Select(population Population, tournamentSize int, rng *rand.Rand) Individual {
	individuals := population.GetIndividuals()
	if len(individuals) == 0 {
		return nil
	}

	best := individuals[rng.Intn(len(individuals))]
	for i := 1; i < tournamentSize; i++ {
		candidate := individuals[rng.Intn(len(individuals))]
		if candidate.GetFitness() > best.GetFitness() {
			best = candidate
		}
	}
	return best
}

func (op *ParamGeneticOperator) nudge(r ParamRange, v float64, rng *rand.Rand) float64 {
	if r.IsFixed() {
		return r.Snap(v)
	}
	if rng.Float64() < 0.3 {
		return randomChoice(r.Values(), rng)
	}
	if rng.Intn(2) == 0 {
		return r.Snap(v - r.Step)
	}
	return r.Snap(v + r.Step)
}

// randomChoice selects a random element from a slice
func randomChoice[T any](choices []T, rng *rand.Rand) T {
	if len(choices) == 0 {
		var zero T
		return zero
	}
	return choices[rng.Intn(len(choices))]
}
