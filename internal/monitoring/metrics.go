package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// Evaluation outcome labels
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusTimeout  = "timeout"
	StatusRejected = "rejected"
)

var (
	// Evaluation metrics
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sl_optimizer_evaluations_total",
			Help: "Total number of parameter tuple evaluations",
		},
		[]string{"mode", "status"},
	)

	evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sl_optimizer_evaluation_duration_seconds",
			Help:    "Distribution of evaluation durations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"mode"},
	)

	// Run metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sl_optimizer_runs_total",
			Help: "Total number of optimization runs",
		},
		[]string{"mode", "outcome"},
	)

	skippedTrades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sl_optimizer_skipped_trades_total",
			Help: "Trades excluded from replay",
		},
	)

	runProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sl_optimizer_run_progress_ratio",
			Help: "Completed share of the current run",
		},
	)

	bestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sl_optimizer_best_score",
			Help: "Objective value of the top ranked candidate",
		},
		[]string{"objective"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sl_optimizer_errors_total",
			Help: "Total number of errors",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(evaluationDuration)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(skippedTrades)
	prometheus.MustRegister(runProgress)
	prometheus.MustRegister(bestScore)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{handler: promhttp.Handler()}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}

// RecordEvaluation records one evaluation outcome
func RecordEvaluation(mode, status string, d time.Duration) {
	evaluationsTotal.WithLabelValues(mode, status).Inc()
	if status == StatusOK {
		evaluationDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// RecordRejected records tuples rejected before evaluation
func RecordRejected(mode string, n int) {
	if n > 0 {
		evaluationsTotal.WithLabelValues(mode, StatusRejected).Add(float64(n))
	}
}

// RecordRun records a finished run
func RecordRun(mode string, aborted bool) {
	outcome := "completed"
	if aborted {
		outcome = "aborted"
	}
	runsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordSkippedTrades adds trades excluded from replay
func RecordSkippedTrades(n int) {
	if n > 0 {
		skippedTrades.Add(float64(n))
	}
}

// UpdateProgress sets the completed share of the current run
func UpdateProgress(done, total int) {
	if total <= 0 {
		runProgress.Set(0)
		return
	}
	runProgress.Set(float64(done) / float64(total))
}

// UpdateBestScore records the score of the top candidate
func UpdateBestScore(objective string, score float64) {
	bestScore.WithLabelValues(objective).Set(backtest.SanitizeFloat(score))
}

// RecordError records an error metric by category
func RecordError(err error) {
	category := "UNKNOWN"
	var oe *opterrors.OptimizerError
	if errors.As(err, &oe) {
		category = string(oe.Category)
	}
	errorsTotal.WithLabelValues(category).Inc()
}

// InstrumentedEvaluator records duration and outcome of every evaluation
type InstrumentedEvaluator struct {
	next backtest.Evaluator
	mode string
}

// Instrument wraps an evaluator with evaluation metrics
func Instrument(next backtest.Evaluator, mode string) *InstrumentedEvaluator {
	return &InstrumentedEvaluator{next: next, mode: mode}
}

// Evaluate implements backtest.Evaluator
func (ie *InstrumentedEvaluator) Evaluate(ctx context.Context, p backtest.Params) (*backtest.PortfolioMetrics, error) {
	start := time.Now()
	m, err := ie.next.Evaluate(ctx, p)
	switch {
	case err == nil:
		RecordEvaluation(ie.mode, StatusOK, time.Since(start))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, opterrors.ErrEvaluationTimeout):
		RecordEvaluation(ie.mode, StatusTimeout, time.Since(start))
		RecordError(err)
	default:
		RecordEvaluation(ie.mode, StatusFailed, time.Since(start))
		RecordError(err)
	}
	return m, err
}
