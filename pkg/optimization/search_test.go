package optimization

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// bowlEvaluator scores tuples on a smooth surface peaking at SL=2, BE=1
type bowlEvaluator struct {
	calls  atomic.Int64
	failSL float64
}

func (b *bowlEvaluator) Evaluate(ctx context.Context, p backtest.Params) (*backtest.PortfolioMetrics, error) {
	b.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.failSL != 0 && p.SL == b.failSL {
		return nil, errors.New("boom")
	}
	pnl := 10 - math.Pow(p.SL-2, 2) - math.Pow(p.BE-1, 2) + 0.1*p.TSTrigger
	return &backtest.PortfolioMetrics{
		Params:      p,
		PnLTotal:    pnl,
		MaxDrawdown: p.SL,
		WinRate:     50,
		TotalTrades: 10,
	}, nil
}

// cancellingEvaluator cancels the run once it has scored after tuples
type cancellingEvaluator struct {
	bowlEvaluator
	after  int64
	cancel context.CancelFunc
}

func (c *cancellingEvaluator) Evaluate(ctx context.Context, p backtest.Params) (*backtest.PortfolioMetrics, error) {
	m, err := c.bowlEvaluator.Evaluate(ctx, p)
	if c.bowlEvaluator.calls.Load() == c.after {
		c.cancel()
	}
	return m, err
}

func testSpace() SearchSpace {
	return SearchSpace{
		SL:        ParamRange{Min: 0.5, Max: 3, Step: 0.5},
		BE:        ParamRange{Min: 0, Max: 2, Step: 0.5},
		TSTrigger: ParamRange{Min: 1, Max: 2, Step: 1},
		TSStep:    Fixed(0.5),
		Selected:  AllParams,
	}
}

// TestGridSearch tests that every tuple is evaluated and the published total matches
func TestGridSearch(t *testing.T) {
	tracker := NewProgressTracker()
	eval := &bowlEvaluator{}
	space := testSpace()

	res, err := (&GridSearcher{}).Search(context.Background(), eval, space, SearchOptions{
		Objective: ObjectivePnL, Workers: 3, Tracker: tracker,
	})
	require.NoError(t, err)

	assert.Equal(t, 6*5*2, res.Total)
	assert.Equal(t, res.Total, res.Evaluated)
	assert.Equal(t, res.Total, tracker.Snapshot().TotalCombinations)
	assert.Equal(t, res.Total, tracker.Snapshot().CurrentProgress)
	assert.Len(t, res.Candidates, res.Total)
	assert.False(t, res.Aborted)

	ranked := RankCandidates(res.Candidates, ObjectivePnL)
	assert.Equal(t, backtest.Params{SL: 2, BE: 1, TSTrigger: 2, TSStep: 0.5}, ranked[0].Params)
	assert.Equal(t, 1, ranked[0].Rank)
}

// TestGridSearch_Deterministic tests that two runs rank identically
func TestGridSearch_Deterministic(t *testing.T) {
	run := func() []backtest.Params {
		res, err := (&GridSearcher{}).Search(context.Background(), &bowlEvaluator{}, testSpace(),
			SearchOptions{Objective: ObjectiveSharpe, Workers: 4})
		require.NoError(t, err)
		var out []backtest.Params
		for _, c := range RankCandidates(res.Candidates, ObjectiveSharpe) {
			out = append(out, c.Params)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

// TestGridSearch_FailuresCounted tests that failed evaluations are omitted and counted
func TestGridSearch_FailuresCounted(t *testing.T) {
	res, err := (&GridSearcher{}).Search(context.Background(), &bowlEvaluator{failSL: 1}, testSpace(),
		SearchOptions{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Failed)
	assert.Len(t, res.Candidates, res.Total-10)
	for _, c := range res.Candidates {
		assert.NotEqual(t, 1.0, c.Params.SL)
	}
}

// TestGridSearch_Cancelled tests that a cancelled run is flagged and keeps what it has
func TestGridSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := (&GridSearcher{}).Search(ctx, &bowlEvaluator{}, testSpace(), SearchOptions{Workers: 2})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Less(t, res.Evaluated, res.Total)
}

// TestSearch_CancelledMidRun tests that tuples skipped by a cancel are not counted as failures
func TestSearch_CancelledMidRun(t *testing.T) {
	searchers := map[string]Searcher{
		"grid":     &GridSearcher{},
		"bayesian": &BayesianSearcher{},
		"genetic":  &GeneticSearcher{},
	}
	for name, searcher := range searchers {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			eval := &cancellingEvaluator{after: 3, cancel: cancel}

			res, err := searcher.Search(ctx, eval, testSpace(), SearchOptions{
				Objective: ObjectivePnL,
				Workers:   1,
				Trials:    20,
				Seed:      5,
				Genetic:   GeneticConfig{PopulationSize: 12, Generations: 4},
			})
			require.NoError(t, err)

			assert.True(t, res.Aborted)
			assert.Equal(t, 0, res.Failed)
			assert.Less(t, res.Evaluated, res.Total)
			assert.Len(t, res.Candidates, int(eval.calls.Load()))
		})
	}
}

// TestGridSearch_InvalidSpace tests range validation
func TestGridSearch_InvalidSpace(t *testing.T) {
	space := testSpace()
	space.SL = ParamRange{Min: 3, Max: 1, Step: 0.5}
	_, err := (&GridSearcher{}).Search(context.Background(), &bowlEvaluator{}, space, SearchOptions{})
	assert.Error(t, err)
}

// TestClampTrials tests the trial budget bounds
func TestClampTrials(t *testing.T) {
	assert.Equal(t, 50, ClampTrials(0))
	assert.Equal(t, 10, ClampTrials(3))
	assert.Equal(t, 10, ClampTrials(-5))
	assert.Equal(t, 120, ClampTrials(120))
	assert.Equal(t, 500, ClampTrials(9000))
}

// TestBayesianSearch tests that suggestions land on the grid and honour fixed ranges
func TestBayesianSearch(t *testing.T) {
	space := testSpace()
	tracker := NewProgressTracker()
	res, err := (&BayesianSearcher{}).Search(context.Background(), &bowlEvaluator{}, space, SearchOptions{
		Objective: ObjectivePnL, Workers: 2, Trials: 20, Seed: 7, Tracker: tracker,
	})
	require.NoError(t, err)

	assert.Equal(t, 20, res.Total)
	assert.Equal(t, 20, res.Evaluated)
	assert.Equal(t, 20, tracker.Snapshot().CurrentProgress)
	require.NotEmpty(t, res.Candidates)

	seen := make(map[string]bool)
	for _, c := range res.Candidates {
		assert.False(t, seen[c.Params.Key()], "tuple evaluated twice: %s", c.Params)
		seen[c.Params.Key()] = true
		assert.Equal(t, 0.5, c.Params.TSStep)
		assert.Contains(t, space.SL.Values(), c.Params.SL)
		assert.Contains(t, space.BE.Values(), c.Params.BE)
		assert.Contains(t, space.TSTrigger.Values(), c.Params.TSTrigger)
	}
}

// TestBayesianSearch_DisabledFamily tests that a deselected family stays zero
func TestBayesianSearch_DisabledFamily(t *testing.T) {
	space := testSpace()
	space.Selected = ParamSelection{SL: true}
	res, err := (&BayesianSearcher{}).Search(context.Background(), &bowlEvaluator{}, space, SearchOptions{
		Objective: ObjectiveDrawdown, Workers: 1, Trials: 10, Seed: 1,
	})
	require.NoError(t, err)
	for _, c := range res.Candidates {
		assert.Equal(t, 0.0, c.Params.BE)
		assert.Equal(t, 0.0, c.Params.TSTrigger)
		assert.Equal(t, 0.0, c.Params.TSStep)
	}
}

// TestGeneticSearch tests seeded reproducibility and convergence towards the optimum
func TestGeneticSearch(t *testing.T) {
	opts := SearchOptions{
		Objective: ObjectivePnL,
		Workers:   2,
		Seed:      11,
		Genetic:   GeneticConfig{PopulationSize: 12, Generations: 6},
	}
	run := func() []Candidate {
		res, err := (&GeneticSearcher{}).Search(context.Background(), &bowlEvaluator{}, testSpace(), opts)
		require.NoError(t, err)
		assert.Equal(t, 72, res.Total)
		assert.Equal(t, res.Total, res.Evaluated)
		return RankCandidates(res.Candidates, ObjectivePnL)
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Params, b[i].Params)
	}
	assert.GreaterOrEqual(t, a[0].Metrics.PnLTotal, 8.5)
}

// TestNewSearcher tests mode dispatch
func TestNewSearcher(t *testing.T) {
	for mode, want := range map[Mode]Searcher{
		ModeGrid:     &GridSearcher{},
		ModeBayesian: &BayesianSearcher{},
		ModeGenetic:  &GeneticSearcher{},
	} {
		got, err := NewSearcher(mode)
		require.NoError(t, err)
		assert.IsType(t, want, got)
	}
	_, err := NewSearcher("annealing")
	assert.Error(t, err)

	m, err := ParseMode("optuna")
	require.NoError(t, err)
	assert.Equal(t, ModeBayesian, m)
}

// TestProgressTracker_ETA tests the ETA extrapolation with a fixed clock
func TestProgressTracker_ETA(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	pt := NewProgressTracker()
	pt.now = func() time.Time { return now }

	pt.Start("run-1", 10)
	p := pt.Snapshot()
	assert.True(t, p.Running)
	assert.True(t, p.EstimatedCompletion.IsZero())

	now = start.Add(4 * time.Second)
	for i := 0; i < 2; i++ {
		pt.Increment()
	}
	p = pt.Snapshot()
	assert.Equal(t, 2, p.CurrentProgress)
	assert.InDelta(t, 20.0, p.Percent, 1e-9)
	assert.Equal(t, start.Add(20*time.Second), p.EstimatedCompletion)
	assert.Equal(t, 16*time.Second, pt.EstimateTimeRemaining())

	pt.Finish(true, "cancelled")
	p = pt.Snapshot()
	assert.False(t, p.Running)
	assert.True(t, p.Aborted)
	assert.Equal(t, "cancelled", p.StatusMessage)
	assert.Equal(t, "run-1", p.RunID)
}

// TestProgressTracker_NilSafe tests that a nil tracker ignores writes
func TestProgressTracker_NilSafe(t *testing.T) {
	var pt *ProgressTracker
	assert.NotPanics(t, func() {
		pt.Start("x", 1)
		pt.SetTotal(3)
		pt.Increment()
		pt.SetStatus("s")
		pt.Finish(false, "done")
	})
}
