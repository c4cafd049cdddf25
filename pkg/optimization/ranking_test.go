package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

func cand(p backtest.Params, pnl, pf, dd float64) Candidate {
	return Candidate{Params: p, Metrics: &backtest.PortfolioMetrics{Params: p, PnLTotal: pnl, ProfitFactor: pf, MaxDrawdown: dd}}
}

// TestRankCandidates_TieBreaks tests objective, then PnL, then tuple order
func TestRankCandidates_TieBreaks(t *testing.T) {
	cs := []Candidate{
		cand(backtest.Params{SL: 2}, 5, 2, 1),
		cand(backtest.Params{SL: 1}, 5, 2, 1),
		cand(backtest.Params{SL: 3}, 7, 2, 1),
		cand(backtest.Params{SL: 4}, 1, math.Inf(1), 1),
		{Params: backtest.Params{SL: 9}},
	}

	ranked := RankCandidates(cs, ObjectiveProfitFactor)
	require.Len(t, ranked, 4)
	assert.Equal(t, 4.0, ranked[0].Params.SL)
	assert.Equal(t, 3.0, ranked[1].Params.SL)
	assert.Equal(t, 1.0, ranked[2].Params.SL)
	assert.Equal(t, 2.0, ranked[3].Params.SL)
	for i, c := range ranked {
		assert.Equal(t, i+1, c.Rank)
	}
}

// TestRankCandidates_Drawdown tests the ascending objective
func TestRankCandidates_Drawdown(t *testing.T) {
	cs := []Candidate{
		cand(backtest.Params{SL: 1}, 5, 1, 3),
		cand(backtest.Params{SL: 2}, 5, 1, 1),
		cand(backtest.Params{SL: 3}, 5, 1, 2),
	}
	ranked := RankCandidates(cs, ObjectiveDrawdown)
	assert.Equal(t, []float64{1, 2, 3}, []float64{ranked[0].Score, ranked[1].Score, ranked[2].Score})
}

// TestRankCandidates_Idempotent tests that re-ranking changes nothing
func TestRankCandidates_Idempotent(t *testing.T) {
	cs := []Candidate{
		cand(backtest.Params{SL: 1, BE: 0.5}, 2, 1, 1),
		cand(backtest.Params{SL: 1, BE: 0.2}, 2, 1, 1),
		cand(backtest.Params{SL: 0.5}, 3, 1, 1),
	}
	once := RankCandidates(cs, ObjectivePnL)
	snapshot := append([]Candidate(nil), once...)
	twice := RankCandidates(once, ObjectivePnL)
	assert.Equal(t, snapshot, twice)
	assert.Equal(t, backtest.Params{SL: 1, BE: 0.2}, twice[1].Params)
}

// TestParseObjective tests objective aliases
func TestParseObjective(t *testing.T) {
	for in, want := range map[string]Objective{
		"":              ObjectivePnL,
		"profit_factor": ObjectiveProfitFactor,
		"Sharpe":        ObjectiveSharpe,
		"max_drawdown":  ObjectiveDrawdown,
		"winrate":       ObjectiveWinRate,
		"recovery":      ObjectiveRecovery,
	} {
		got, err := ParseObjective(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseObjective("sortino")
	assert.Error(t, err)
}

// TestTopN tests truncation
func TestTopN(t *testing.T) {
	cs := []Candidate{{Rank: 1}, {Rank: 2}, {Rank: 3}}
	assert.Len(t, TopN(cs, 2), 2)
	assert.Len(t, TopN(cs, 0), 3)
	assert.Len(t, TopN(cs, 10), 3)
}
