package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/storage"
)

// StoreSink persists runs in the results database
type StoreSink struct {
	store *storage.Store
}

// NewStoreSink creates a sink writing to store
func NewStoreSink(store *storage.Store) *StoreSink {
	return &StoreSink{store: store}
}

// Name implements Sink
func (s *StoreSink) Name() string { return "sqlite" }

// Publish implements Sink. Every ranked candidate is stored; per-trade rows
// are kept for the baseline (rank 0) and the best candidate (rank 1).
func (s *StoreSink) Publish(ctx context.Context, r *RunResult) error {
	return s.store.SaveRun(ctx, RunRecord(r))
}

// RunRecord converts a run result to its database representation
func RunRecord(r *RunResult) *storage.RunRecord {
	space, _ := json.Marshal(r.Space)
	baselinePnL := 0.0
	if r.Baseline != nil {
		baselinePnL = r.Baseline.PnLTotal
	}

	rec := &storage.RunRecord{
		ID:                r.RunID,
		Mode:              string(r.Mode),
		Objective:         string(r.Objective),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		ElapsedMs:         r.Elapsed().Milliseconds(),
		TotalCombinations: r.TotalCombinations,
		Evaluated:         r.Evaluated,
		Failed:            r.FailedEvaluations,
		Rejected:          r.RejectedTuples,
		SkippedTrades:     r.SkippedTrades,
		Aborted:           r.Aborted,
		BaselinePnL:       baselinePnL,
		SearchSpace:       string(space),
		Candidates:        storage.CandidateRecords(r.RunID, r.Ranked, baselinePnL),
	}
	if r.Baseline != nil {
		rec.Trades = append(rec.Trades, storage.TradeRecords(r.RunID, 0, r.Baseline.Trades)...)
	}
	if r.Best != nil {
		rec.Trades = append(rec.Trades, storage.TradeRecords(r.RunID, 1, r.Best.Trades)...)
	}
	return rec
}
