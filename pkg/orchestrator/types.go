package orchestrator

import (
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/analysis"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

// RunResult is what every sink receives after an optimization run.
// Baseline and Best carry per-trade results; ranked candidates carry
// aggregate metrics only.
type RunResult struct {
	RunID     string                   `json:"run_id"`
	Mode      optimization.Mode        `json:"mode"`
	Objective optimization.Objective   `json:"objective"`
	Space     optimization.SearchSpace `json:"search_space"`

	Ranked   []optimization.Candidate   `json:"ranked"`
	Baseline *backtest.PortfolioMetrics `json:"baseline"`
	Best     *backtest.PortfolioMetrics `json:"best,omitempty"`

	TotalCombinations int                     `json:"total_combinations"`
	Evaluated         int                     `json:"evaluated"`
	SkippedTrades     int                     `json:"skipped_trades"`
	Skipped           []backtest.SkippedTrade `json:"skipped,omitempty"`
	FailedEvaluations int                     `json:"failed_evaluations"`
	RejectedTuples    int                     `json:"rejected_tuples"`
	Aborted           bool                    `json:"aborted"`

	Assembly data.AssemblyReport `json:"assembly"`
	Warnings []analysis.Warning  `json:"warnings,omitempty"`

	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	LoadDuration   time.Duration `json:"load_duration_ns"`
	SearchDuration time.Duration `json:"search_duration_ns"`

	SinkErrors []string `json:"sink_errors,omitempty"`
}

// Top returns at most n leading candidates
func (r *RunResult) Top(n int) []optimization.Candidate {
	return optimization.TopN(r.Ranked, n)
}

// Improvement is the PnL gain of a candidate over the baseline
func (r *RunResult) Improvement(c optimization.Candidate) float64 {
	if c.Metrics == nil || r.Baseline == nil {
		return 0
	}
	return c.Metrics.PnLTotal - r.Baseline.PnLTotal
}

// Elapsed is the wall time of the run
func (r *RunResult) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// AnalysisResult is the outcome of the smart-range analysis
type AnalysisResult struct {
	Source        string                   `json:"source"` // tradelist or candles
	Analysis      *analysis.Analysis       `json:"analysis"`
	Export        *analysis.ExportedRanges `json:"export"`
	Missing       int                      `json:"missing_excursions"`
	SkippedTrades int                      `json:"skipped_trades"`
}

// SimulationResult is one tuple replayed against every trade
type SimulationResult struct {
	Params        backtest.Params            `json:"params"`
	Metrics       *backtest.PortfolioMetrics `json:"metrics"`
	Baseline      *backtest.PortfolioMetrics `json:"baseline"`
	SkippedTrades int                        `json:"skipped_trades"`
	Skipped       []backtest.SkippedTrade    `json:"skipped,omitempty"`
}

// Improvement is the PnL gain of the tuple over the baseline
func (s *SimulationResult) Improvement() float64 {
	if s.Metrics == nil || s.Baseline == nil {
		return 0
	}
	return s.Metrics.PnLTotal - s.Baseline.PnLTotal
}
