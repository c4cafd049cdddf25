package storage

import (
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

// RunRecord is one optimization run
type RunRecord struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	Mode              string    `gorm:"size:16;index" json:"mode"`
	Objective         string    `gorm:"size:16" json:"objective"`
	StartedAt         time.Time `gorm:"index" json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	ElapsedMs         int64     `json:"elapsed_ms"`
	TotalCombinations int       `json:"total_combinations"`
	Evaluated         int       `json:"evaluated"`
	Failed            int       `json:"failed_evaluations"`
	Rejected          int       `json:"rejected_tuples"`
	SkippedTrades     int       `json:"skipped_trades"`
	Aborted           bool      `json:"aborted"`
	BaselinePnL       float64   `json:"baseline_pnl"`
	SearchSpace       string    `gorm:"type:text" json:"search_space"`

	Candidates []CandidateRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"candidates,omitempty"`
	Trades     []TradeRecord     `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"-"`
}

// CandidateRecord is one ranked parameter tuple of a run
type CandidateRecord struct {
	ID             uint    `gorm:"primaryKey" json:"-"`
	RunID          string  `gorm:"size:36;index:idx_run_rank" json:"run_id"`
	Rank           int     `gorm:"column:rank_no;index:idx_run_rank" json:"rank"`
	SL             float64 `json:"sl"`
	BE             float64 `json:"be"`
	TSTrigger      float64 `json:"ts_trig"`
	TSStep         float64 `json:"ts_step"`
	Score          float64 `json:"score"`
	PnLTotal       float64 `json:"pnl_total"`
	WinRate        float64 `json:"winrate"`
	ProfitFactor   float64 `json:"profit_factor"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	RecoveryFactor float64 `json:"recovery_factor"`
	TotalTrades    int     `json:"total_trades"`
	Improvement    float64 `json:"improvement_vs_baseline"`
}

// Params returns the tuple of the candidate
func (c CandidateRecord) Params() backtest.Params {
	return backtest.Params{SL: c.SL, BE: c.BE, TSTrigger: c.TSTrigger, TSStep: c.TSStep}
}

// TradeRecord is one replayed trade. Rank 0 holds the baseline replay.
type TradeRecord struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RunID        string    `gorm:"size:36;index:idx_trade_run_rank" json:"run_id"`
	Rank         int       `gorm:"column:rank_no;index:idx_trade_run_rank" json:"rank"`
	Num          int       `json:"num"`
	Side         string    `gorm:"size:8" json:"side"`
	EntryTime    time.Time `json:"entry_time"`
	ExitTime     time.Time `json:"exit_time"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	ExitType     string    `gorm:"size:8" json:"exit_type"`
	PnLPct       float64   `json:"pnl_pct"`
	PnLPctOrigin float64   `json:"pnl_pct_origin"`
	BEArmed      bool      `json:"be_armed"`
	TSArmed      bool      `json:"ts_armed"`
}

// TableName overrides
func (RunRecord) TableName() string       { return "runs" }
func (CandidateRecord) TableName() string { return "candidates" }
func (TradeRecord) TableName() string     { return "trades" }

// CandidateRecords converts ranked candidates. Infinite metrics are
// replaced by the sentinel.
func CandidateRecords(runID string, ranked []optimization.Candidate, baselinePnL float64) []CandidateRecord {
	out := make([]CandidateRecord, 0, len(ranked))
	for _, c := range ranked {
		if c.Metrics == nil {
			continue
		}
		m := c.Metrics
		out = append(out, CandidateRecord{
			RunID:          runID,
			Rank:           c.Rank,
			SL:             c.Params.SL,
			BE:             c.Params.BE,
			TSTrigger:      c.Params.TSTrigger,
			TSStep:         c.Params.TSStep,
			Score:          backtest.SanitizeFloat(c.Score),
			PnLTotal:       backtest.SanitizeFloat(m.PnLTotal),
			WinRate:        backtest.SanitizeFloat(m.WinRate),
			ProfitFactor:   backtest.SanitizeFloat(m.ProfitFactor),
			MaxDrawdown:    backtest.SanitizeFloat(m.MaxDrawdown),
			SharpeRatio:    backtest.SanitizeFloat(m.SharpeRatio),
			RecoveryFactor: backtest.SanitizeFloat(m.RecoveryFactor),
			TotalTrades:    m.TotalTrades,
			Improvement:    backtest.SanitizeFloat(m.PnLTotal - baselinePnL),
		})
	}
	return out
}

// TradeRecords converts the per-trade results of one candidate
func TradeRecords(runID string, rank int, trades []backtest.TradeResult) []TradeRecord {
	out := make([]TradeRecord, len(trades))
	for i, t := range trades {
		out[i] = TradeRecord{
			RunID:        runID,
			Rank:         rank,
			Num:          t.Num,
			Side:         string(t.Side),
			EntryTime:    t.EntryTime,
			ExitTime:     t.ExitTime,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			ExitType:     string(t.ExitType),
			PnLPct:       backtest.SanitizeFloat(t.PnLPct),
			PnLPctOrigin: backtest.SanitizeFloat(t.PnLPctOrigin),
			BEArmed:      t.BEArmed,
			TSArmed:      t.TSArmed,
		}
	}
	return out
}
