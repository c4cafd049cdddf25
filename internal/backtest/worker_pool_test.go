package backtest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// fakeEvaluator scores a tuple by its stop-loss value
type fakeEvaluator struct {
	calls   atomic.Int64
	delay   time.Duration
	panicOn float64
	failOn  float64
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, p Params) (*PortfolioMetrics, error) {
	f.calls.Add(1)
	if p.SL == f.panicOn && f.panicOn != 0 {
		panic("boom")
	}
	if p.SL == f.failOn && f.failOn != 0 {
		return nil, errors.New("evaluation failed")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &PortfolioMetrics{Params: p, PnLTotal: p.SL}, nil
}

// TestEvaluateBatch tests parallel evaluation preserving input order
func TestEvaluateBatch(t *testing.T) {
	eval := &fakeEvaluator{}
	params := []Params{{SL: 1}, {SL: 2}, {SL: 3}, {SL: 4}, {SL: 5}}

	results := EvaluateBatch(context.Background(), eval, params, 3, 0)

	require.Len(t, results, len(params))
	for i, r := range results {
		require.NoError(t, r.Error)
		assert.Equal(t, params[i], r.Params)
		assert.Equal(t, params[i].SL, r.Metrics.PnLTotal)
	}
	assert.Equal(t, int64(len(params)), eval.calls.Load())
}

// TestWorkerPool_FailuresAreIsolated tests that panics and errors fail only their own job
func TestWorkerPool_FailuresAreIsolated(t *testing.T) {
	eval := &fakeEvaluator{panicOn: 2, failOn: 3}
	params := []Params{{SL: 1}, {SL: 2}, {SL: 3}, {SL: 4}}

	results := EvaluateBatch(context.Background(), eval, params, 2, 0)

	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.True(t, opterrors.IsCategory(results[1].Error, opterrors.ErrorCategoryEvaluation))
	assert.True(t, results[2].Failed())
	assert.False(t, results[3].Failed())
}

// TestWorkerPool_Timeout tests the per-evaluation deadline
func TestWorkerPool_Timeout(t *testing.T) {
	eval := &fakeEvaluator{delay: 200 * time.Millisecond}
	results := EvaluateBatch(context.Background(), eval, []Params{{SL: 1}}, 1, 10*time.Millisecond)

	require.True(t, results[0].Failed())
	assert.ErrorIs(t, results[0].Error, opterrors.ErrEvaluationTimeout)
	assert.True(t, opterrors.IsCategory(results[0].Error, opterrors.ErrorCategoryTimeout))
}

// TestWorkerPool_CancelBeforeStart tests that a cancelled pool evaluates nothing
func TestWorkerPool_CancelBeforeStart(t *testing.T) {
	eval := &fakeEvaluator{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := EvaluateBatch(ctx, eval, []Params{{SL: 1}, {SL: 2}}, 2, 0)

	assert.Equal(t, int64(0), eval.calls.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
		assert.True(t, r.Skipped())
	}
	assert.False(t, EvaluationResult{Error: errors.New("evaluation failed")}.Skipped())
}
