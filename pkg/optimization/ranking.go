package optimization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// Objective names the metric candidates are ranked by
type Objective string

const (
	ObjectivePnL          Objective = "pnl"
	ObjectiveWinRate      Objective = "winrate"
	ObjectiveProfitFactor Objective = "pf"
	ObjectiveSharpe       Objective = "sharpe"
	ObjectiveRecovery     Objective = "recovery"
	ObjectiveDrawdown     Objective = "drawdown"
)

// ParseObjective parses an objective name, defaulting empty input to pnl
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pnl", "pnl_total", "total_pnl":
		return ObjectivePnL, nil
	case "winrate", "win_rate":
		return ObjectiveWinRate, nil
	case "pf", "profit_factor":
		return ObjectiveProfitFactor, nil
	case "sharpe", "sharpe_ratio":
		return ObjectiveSharpe, nil
	case "recovery", "recovery_factor":
		return ObjectiveRecovery, nil
	case "drawdown", "max_drawdown", "dd":
		return ObjectiveDrawdown, nil
	}
	return "", fmt.Errorf("unknown optimization objective %q", s)
}

// Minimize reports whether lower values are better
func (o Objective) Minimize() bool {
	return o == ObjectiveDrawdown
}

// ObjectiveValue returns the scalar an objective ranks by
func ObjectiveValue(m *backtest.PortfolioMetrics, o Objective) float64 {
	if m == nil {
		return 0
	}
	switch o {
	case ObjectiveWinRate:
		return m.WinRate
	case ObjectiveProfitFactor:
		return m.ProfitFactor
	case ObjectiveSharpe:
		return m.SharpeRatio
	case ObjectiveRecovery:
		return m.RecoveryFactor
	case ObjectiveDrawdown:
		return m.MaxDrawdown
	default:
		return m.PnLTotal
	}
}

// better reports whether a is strictly better than b under the objective.
// Comparisons work on infinite values; two +Inf scores tie.
func better(a, b float64, o Objective) bool {
	if o.Minimize() {
		return a < b
	}
	return a > b
}

// candidateLess is the total order used for ranking: objective, then total
// PnL descending, then the tuple ascending
func candidateLess(a, b Candidate, o Objective) bool {
	if better(a.Score, b.Score, o) {
		return true
	}
	if better(b.Score, a.Score, o) {
		return false
	}
	pa, pb := a.Metrics.PnLTotal, b.Metrics.PnLTotal
	if pa != pb {
		return pa > pb
	}
	return a.Params.Less(b.Params)
}

// RankCandidates scores and sorts candidates in place and assigns 1-based
// ranks. Candidates without metrics are dropped. Ranking a ranked slice
// again leaves it unchanged.
func RankCandidates(candidates []Candidate, o Objective) []Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Metrics == nil {
			continue
		}
		c.Score = ObjectiveValue(c.Metrics, o)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return candidateLess(out[i], out[j], o)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// TopN returns at most n leading candidates; n <= 0 returns all
func TopN(ranked []Candidate, n int) []Candidate {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
