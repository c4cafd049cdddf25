package optimization

import (
	"sort"
)

// ParamPopulation represents a collection of individuals
type ParamPopulation struct {
	individuals []Individual
}

// NewParamPopulation creates a new population with the given individuals
func NewParamPopulation(individuals []Individual) *ParamPopulation {
	return &ParamPopulation{
		individuals: individuals,
	}
}

// GetIndividuals returns all individuals in the population
func (p *ParamPopulation) GetIndividuals() []Individual {
	return p.individuals
}

// SetIndividuals sets the individuals in the population
func (p *ParamPopulation) SetIndividuals(individuals []Individual) {
	p.individuals = individuals
}

// Size returns the number of individuals in the population
func (p *ParamPopulation) Size() int {
	return len(p.individuals)
}

// GetBest returns the individual with the highest fitness
func (p *ParamPopulation) GetBest() Individual {
	if len(p.individuals) == 0 {
		return nil
	}

	best := p.individuals[0]
	for _, individual := range p.individuals[1:] {
		if individual.GetFitness() > best.GetFitness() {
			best = individual
		}
	}
	return best
}

// SortByFitness sorts the population by fitness, best first. Ties keep the
// tuple order so runs with the same seed are reproducible.
func (p *ParamPopulation) SortByFitness() {
	sort.SliceStable(p.individuals, func(i, j int) bool {
		fi, fj := p.individuals[i].GetFitness(), p.individuals[j].GetFitness()
		if fi != fj {
			return fi > fj
		}
		return p.individuals[i].GetParams().Less(p.individuals[j].GetParams())
	})
}

// AverageFitness calculates the average fitness of all individuals
func (p *ParamPopulation) AverageFitness() float64 {
	if len(p.individuals) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, individual := range p.individuals {
		sum += individual.GetFitness()
	}
	return sum / float64(len(p.individuals))
}

// GetElite returns copies of the top n individuals by fitness
func (p *ParamPopulation) GetElite(n int) []Individual {
	p.SortByFitness()
	if n > len(p.individuals) {
		n = len(p.individuals)
	}

	elite := make([]Individual, n)
	for i := 0; i < n; i++ {
		elite[i] = p.individuals[i].Copy()
	}
	return elite
}
