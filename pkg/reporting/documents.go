package reporting

import (
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/analysis"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// Output document types. Every float is sanitized so infinities never
// reach an encoder.

// ParamsDocument is a tuple in the output format
type ParamsDocument struct {
	SL        float64 `json:"SL"`
	BE        float64 `json:"BE"`
	TSTrigger float64 `json:"TS_trigger"`
	TSStep    float64 `json:"TS_step"`
}

// RankingRow is one ranked candidate
type RankingRow struct {
	Rank           int            `json:"rank"`
	Params         ParamsDocument `json:"params"`
	Score          float64        `json:"score"`
	PnLTotal       float64        `json:"pnl_total"`
	Improvement    float64        `json:"improvement"`
	WinRate        float64        `json:"winrate"`
	ProfitFactor   float64        `json:"profit_factor"`
	MaxDrawdown    float64        `json:"max_drawdown"`
	SharpeRatio    float64        `json:"sharpe_ratio"`
	RecoveryFactor float64        `json:"recovery_factor"`
	TotalTrades    int            `json:"total_trades"`
	WinningTrades  int            `json:"winning_trades"`
	LosingTrades   int            `json:"losing_trades"`
}

// CountsDocument carries the counters every output must show
type CountsDocument struct {
	TotalCombinations int  `json:"total_combinations"`
	Evaluated         int  `json:"evaluated"`
	FailedEvaluations int  `json:"failed_evaluations"`
	RejectedTuples    int  `json:"rejected_tuples"`
	SkippedTrades     int  `json:"skipped_trades"`
	DiscardedTrades   int  `json:"discarded_trades"`
	Aborted           bool `json:"aborted"`
}

// BestDocument is the content of best.json
type BestDocument struct {
	RunID       string                     `json:"run_id"`
	Mode        string                     `json:"mode"`
	Objective   string                     `json:"objective"`
	GeneratedAt time.Time                  `json:"generated_at"`
	ElapsedSec  float64                    `json:"elapsed_sec"`
	Best        *RankingRow                `json:"best,omitempty"`
	Baseline    *backtest.PortfolioMetrics `json:"baseline,omitempty"`
	BestMetrics *backtest.PortfolioMetrics `json:"best_metrics,omitempty"`
	Counts      CountsDocument             `json:"counts"`
	Space       optimization.SearchSpace   `json:"search_space"`
	Warnings    []analysis.Warning         `json:"warnings,omitempty"`
	Skipped     []backtest.SkippedTrade    `json:"skipped,omitempty"`
	SinkErrors  []string                   `json:"sink_errors,omitempty"`
	Top         []RankingRow               `json:"top"`
}

// SimulationDocument is the JSON form of a single-tuple replay
type SimulationDocument struct {
	Params      ParamsDocument            `json:"params"`
	Metrics     backtest.PortfolioMetrics `json:"metrics"`
	Baseline    backtest.PortfolioMetrics `json:"baseline"`
	Improvement float64                   `json:"improvement"`
	Skipped     []backtest.SkippedTrade   `json:"skipped,omitempty"`
}

// ToParamsDocument converts a tuple to its output form
func ToParamsDocument(p backtest.Params) ParamsDocument {
	return ParamsDocument{SL: p.SL, BE: p.BE, TSTrigger: p.TSTrigger, TSStep: p.TSStep}
}

// ToRankingRows converts ranked candidates, at most topN when topN > 0
func ToRankingRows(r *orchestrator.RunResult, topN int) []RankingRow {
	ranked := r.Ranked
	if topN > 0 {
		ranked = r.Top(topN)
	}
	rows := make([]RankingRow, 0, len(ranked))
	for _, c := range ranked {
		rows = append(rows, toRankingRow(r, c))
	}
	return rows
}

func toRankingRow(r *orchestrator.RunResult, c optimization.Candidate) RankingRow {
	row := RankingRow{
		Rank:        c.Rank,
		Params:      ToParamsDocument(c.Params),
		Score:       backtest.SanitizeFloat(c.Score),
		Improvement: backtest.SanitizeFloat(r.Improvement(c)),
	}
	if c.Metrics != nil {
		m := c.Metrics.Sanitized()
		row.PnLTotal = m.PnLTotal
		row.WinRate = m.WinRate
		row.ProfitFactor = m.ProfitFactor
		row.MaxDrawdown = m.MaxDrawdown
		row.SharpeRatio = m.SharpeRatio
		row.RecoveryFactor = m.RecoveryFactor
		row.TotalTrades = m.TotalTrades
		row.WinningTrades = m.WinningTrades
		row.LosingTrades = m.LosingTrades
	}
	return row
}

// ToCounts extracts the counters of a run
func ToCounts(r *orchestrator.RunResult) CountsDocument {
	return CountsDocument{
		TotalCombinations: r.TotalCombinations,
		Evaluated:         r.Evaluated,
		FailedEvaluations: r.FailedEvaluations,
		RejectedTuples:    r.RejectedTuples,
		SkippedTrades:     r.SkippedTrades,
		DiscardedTrades:   len(r.Assembly.Discarded),
		Aborted:           r.Aborted,
	}
}

// ToBestDocument converts a run result to the best.json document
func ToBestDocument(r *orchestrator.RunResult, topN int) BestDocument {
	doc := BestDocument{
		RunID:       r.RunID,
		Mode:        string(r.Mode),
		Objective:   string(r.Objective),
		GeneratedAt: r.FinishedAt,
		ElapsedSec:  r.Elapsed().Seconds(),
		Counts:      ToCounts(r),
		Space:       r.Space,
		Warnings:    r.Warnings,
		Skipped:     r.Skipped,
		SinkErrors:  r.SinkErrors,
		Top:         ToRankingRows(r, topN),
	}
	if len(r.Ranked) > 0 {
		best := toRankingRow(r, r.Ranked[0])
		doc.Best = &best
	}
	if r.Baseline != nil {
		doc.Baseline = summaryOnly(r.Baseline)
	}
	if r.Best != nil {
		doc.BestMetrics = summaryOnly(r.Best)
	}
	return doc
}

// ToSimulationDocument converts a single-tuple replay
func ToSimulationDocument(s *orchestrator.SimulationResult) SimulationDocument {
	return SimulationDocument{
		Params:      ToParamsDocument(s.Params),
		Metrics:     s.Metrics.Sanitized(),
		Baseline:    s.Baseline.Sanitized(),
		Improvement: backtest.SanitizeFloat(s.Improvement()),
		Skipped:     s.Skipped,
	}
}

// summaryOnly returns sanitized aggregates without per-trade rows
func summaryOnly(m *backtest.PortfolioMetrics) *backtest.PortfolioMetrics {
	s := m.Sanitized()
	s.Trades = nil
	return &s
}
