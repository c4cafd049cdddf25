package orchestrator

import (
	"context"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
)

// summaryEvaluator drops per-trade results so a search only retains
// aggregate metrics per tuple
type summaryEvaluator struct {
	next backtest.Evaluator
}

func (s summaryEvaluator) Evaluate(ctx context.Context, p backtest.Params) (*backtest.PortfolioMetrics, error) {
	m, err := s.next.Evaluate(ctx, p)
	if m != nil {
		m.Trades = nil
	}
	return m, err
}
