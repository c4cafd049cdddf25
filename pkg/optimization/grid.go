package optimization

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// progressLogEvery controls how often grid progress is logged
const progressLogEvery = 500

// GridSearcher evaluates the full cartesian product of the search space
type GridSearcher struct{}

// Search publishes the total to the tracker, then streams every valid
// tuple through a worker pool. A cancelled context stops submission and
// the partial result is returned with Aborted set.
func (g *GridSearcher) Search(ctx context.Context, evaluator backtest.Evaluator, space SearchSpace, opts SearchOptions) (*SearchResult, error) {
	if err := space.Validate(); err != nil {
		return nil, opterrors.NewConfigurationError("grid_search", "validate_space", err.Error())
	}

	start := time.Now()
	params, rejected := space.Grid()
	result := &SearchResult{
		Mode:     ModeGrid,
		Total:    len(params),
		Rejected: rejected,
	}
	opts.Tracker.SetTotal(len(params))
	if rejected > 0 {
		log.Warn().Int("rejected", rejected).Msg("⚠️ invalid tuples rejected before evaluation")
	}
	log.Info().
		Int("combinations", len(params)).
		Str("sl", space.Effective().SL.String()).
		Str("be", space.Effective().BE.String()).
		Str("ts_trigger", space.Effective().TSTrigger.String()).
		Str("ts_step", space.Effective().TSStep.String()).
		Msg("🔍 grid search started")

	pool := backtest.NewWorkerPool(ctx, opts.Workers, 0, evaluator, opts.Timeout)
	pool.Start()

	go func() {
		defer pool.CloseJobs()
		for i, p := range params {
			if err := pool.SubmitJob(backtest.EvaluationJob{ID: i, Params: p}); err != nil {
				return
			}
		}
	}()

	result.Candidates = make([]Candidate, 0, len(params))
	for res := range pool.GetResults() {
		if res.Skipped() {
			continue
		}
		result.Evaluated++
		opts.Tracker.Increment()
		if !collect(result, res) {
			continue
		}
		if result.Evaluated%progressLogEvery == 0 {
			log.Info().Int("done", result.Evaluated).Int("total", result.Total).Msg("⏳ grid progress")
		}
	}
	pool.Stop()

	result.Aborted = ctx.Err() != nil && result.Evaluated < result.Total
	result.Elapsed = time.Since(start)
	return result, nil
}

// collect appends a successful evaluation or counts the failure. Tuples
// skipped by cancellation are neither.
func collect(result *SearchResult, res backtest.EvaluationResult) bool {
	if res.Skipped() {
		return false
	}
	if res.Failed() {
		result.Failed++
		log.Warn().Err(res.Error).Str("params", res.Params.String()).Msg("⚠️ evaluation failed")
		return false
	}
	result.Candidates = append(result.Candidates, Candidate{Params: res.Params, Metrics: res.Metrics})
	return true
}
