package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/monitoring"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/analysis"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/optimization"
)

// progressPublishInterval is how often tracker progress is copied to the
// progress gauge while a search runs
const progressPublishInterval = time.Second

// DefaultOrchestrator implements the Orchestrator interface
type DefaultOrchestrator struct {
	runner  BacktestRunner
	tracker *optimization.ProgressTracker
	health  *monitoring.HealthChecker
	sinks   []Sink
	newID   func() string
}

// Option customizes a DefaultOrchestrator
type Option func(*DefaultOrchestrator)

// WithRunner replaces the backtest runner
func WithRunner(r BacktestRunner) Option {
	return func(o *DefaultOrchestrator) { o.runner = r }
}

// WithTracker replaces the process-wide progress tracker
func WithTracker(t *optimization.ProgressTracker) Option {
	return func(o *DefaultOrchestrator) { o.tracker = t }
}

// WithHealth reports run lifecycle to a health checker
func WithHealth(h *monitoring.HealthChecker) Option {
	return func(o *DefaultOrchestrator) { o.health = h }
}

// WithSinks appends result sinks
func WithSinks(sinks ...Sink) Option {
	return func(o *DefaultOrchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// NewOrchestrator creates a new orchestrator with default components
func NewOrchestrator(opts ...Option) *DefaultOrchestrator {
	o := &DefaultOrchestrator{
		runner:  NewDefaultBacktestRunner(),
		tracker: optimization.DefaultTracker,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full optimization workflow. A cancelled context stops
// the search early; the partial result is still ranked, marked Aborted
// and published.
func (o *DefaultOrchestrator) Run(ctx context.Context, cfg *config.OptimizerConfig) (result *RunResult, err error) {
	runID := o.newID()
	started := time.Now()
	o.tracker.Start(runID, 0)
	o.tracker.SetStatus("loading data")
	if o.health != nil {
		o.health.RunStarted(runID)
	}
	defer func() {
		if err != nil {
			monitoring.RecordError(err)
			o.tracker.Finish(true, "failed: "+err.Error())
		}
		if o.health != nil {
			o.health.RunFinished(runID, result != nil && result.Aborted, err)
		}
	}()

	mode, err := optimization.ParseMode(cfg.Search.Mode)
	if err != nil {
		return nil, opterrors.NewConfigurationError("orchestrator", "run", err.Error())
	}
	opts, err := cfg.SearchOptions(o.tracker)
	if err != nil {
		return nil, opterrors.NewConfigurationError("orchestrator", "run", err.Error())
	}

	log.Info().Str("run", runID).Str("mode", string(mode)).Str("objective", string(opts.Objective)).
		Msg("🚀 starting optimization")

	session, err := o.runner.Prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	engine := session.Engine

	baseline := engine.EvaluateBaseline()
	log.Info().Float64("pnl_total", baseline.PnLTotal).Float64("winrate", baseline.WinRate).
		Int("trades", baseline.TotalTrades).Msg("📏 baseline evaluated")

	space, warnings, err := o.searchSpace(cfg, session)
	if err != nil {
		return nil, err
	}
	if mode == optimization.ModeGrid {
		space, warnings = limitGrid(space, cfg.Search.MaxGridSize, warnings)
	}

	searcher, err := optimization.NewSearcher(mode)
	if err != nil {
		return nil, opterrors.NewConfigurationError("orchestrator", "run", err.Error())
	}

	o.tracker.SetStatus(fmt.Sprintf("%s search running", mode))
	evaluator := monitoring.Instrument(summaryEvaluator{next: engine}, string(mode))
	stopPublishing := o.publishProgress()
	res, err := searcher.Search(ctx, evaluator, space, opts)
	stopPublishing()
	if err != nil {
		return nil, err
	}
	monitoring.RecordRejected(string(mode), res.Rejected)

	ranked := optimization.RankCandidates(res.Candidates, opts.Objective)
	result = &RunResult{
		RunID:             runID,
		Mode:              mode,
		Objective:         opts.Objective,
		Space:             space,
		Ranked:            ranked,
		Baseline:          baseline,
		TotalCombinations: res.Total,
		Evaluated:         res.Evaluated,
		SkippedTrades:     len(engine.Skipped()),
		Skipped:           engine.Skipped(),
		FailedEvaluations: res.Failed,
		RejectedTuples:    res.Rejected,
		Aborted:           res.Aborted,
		Assembly:          session.Dataset.Report,
		Warnings:          warnings,
		StartedAt:         started,
		LoadDuration:      session.LoadDuration,
		SearchDuration:    res.Elapsed,
	}

	if len(ranked) > 0 {
		// per-trade results of the winner; the search context may already be cancelled
		best, err := engine.Evaluate(context.WithoutCancel(ctx), ranked[0].Params)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ could not replay best candidate")
		} else {
			result.Best = best
		}
		monitoring.UpdateBestScore(string(opts.Objective), ranked[0].Score)
	}
	result.FinishedAt = time.Now()

	monitoring.RecordRun(string(mode), result.Aborted)
	o.tracker.Finish(result.Aborted, o.finishMessage(result))
	o.logSummary(result)

	o.publish(ctx, result)
	return result, nil
}

// searchSpace returns the configured ranges, or the balanced smart ranges
// when enabled
func (o *DefaultOrchestrator) searchSpace(cfg *config.OptimizerConfig, session *Session) (optimization.SearchSpace, []analysis.Warning, error) {
	space, err := cfg.SearchSpace()
	if err != nil {
		return space, nil, opterrors.NewConfigurationError("orchestrator", "search_space", err.Error())
	}
	if !cfg.Search.SmartRanges {
		return space, nil, nil
	}

	o.tracker.SetStatus("analyzing excursions")
	res, err := analyzeSession(session, cfg.Search.MaxGridSize)
	if err != nil {
		return space, nil, err
	}
	smart := res.Export.Space()
	smart.Selected = space.Selected
	log.Info().
		Str("sl", smart.SL.String()).
		Str("be", smart.BE.String()).
		Str("ts_trigger", smart.TSTrigger.String()).
		Str("ts_step", smart.TSStep.String()).
		Str("source", res.Source).
		Msg("🧠 smart ranges applied")
	return smart, res.Analysis.Warnings, nil
}

// limitGrid widens the steps of a grid that exceeds the size ceiling
func limitGrid(space optimization.SearchSpace, maxSize int, warnings []analysis.Warning) (optimization.SearchSpace, []analysis.Warning) {
	if maxSize <= 0 {
		return space, warnings
	}
	before := space.Size()
	widened, changed := space.WidenToFit(maxSize)
	if !changed {
		return space, warnings
	}
	after := widened.Size()
	log.Warn().Int("combinations", before).Int("widened_to", after).Int("max_grid_size", maxSize).
		Msg("⚠️ grid exceeds max_grid_size, steps widened")
	msg := fmt.Sprintf("grid of %d combinations widened to %d to respect max_grid_size %d", before, after, maxSize)
	return widened, append(warnings, analysis.NewWarning(analysis.WarnInfo, float64(after), msg))
}

// publishProgress copies tracker progress to the gauge until stopped
func (o *DefaultOrchestrator) publishProgress() (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressPublishInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				p := o.tracker.Snapshot()
				monitoring.UpdateProgress(p.CurrentProgress, p.TotalCombinations)
				return
			case <-ticker.C:
				p := o.tracker.Snapshot()
				monitoring.UpdateProgress(p.CurrentProgress, p.TotalCombinations)
			}
		}
	}()
	return func() { close(done) }
}

func (o *DefaultOrchestrator) finishMessage(r *RunResult) string {
	if r.Aborted {
		return fmt.Sprintf("aborted after %d of %d evaluations", r.Evaluated, r.TotalCombinations)
	}
	return fmt.Sprintf("completed %d evaluations", r.Evaluated)
}

func (o *DefaultOrchestrator) logSummary(r *RunResult) {
	ev := log.Info().
		Str("run", r.RunID).
		Int("evaluated", r.Evaluated).
		Int("failed", r.FailedEvaluations).
		Int("rejected", r.RejectedTuples).
		Int("skipped_trades", r.SkippedTrades).
		Bool("aborted", r.Aborted).
		Dur("elapsed", r.Elapsed())
	if len(r.Ranked) > 0 {
		best := r.Ranked[0]
		ev = ev.Str("best", best.Params.String()).
			Float64("score", backtest.SanitizeFloat(best.Score)).
			Float64("improvement", r.Improvement(best))
	}
	ev.Msg("✅ optimization finished")
}

// publish hands the result to every sink. Sink failures are recorded on
// the result and never fail the run.
func (o *DefaultOrchestrator) publish(ctx context.Context, r *RunResult) {
	for _, sink := range o.sinks {
		if err := sink.Publish(context.WithoutCancel(ctx), r); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Msg("❌ result sink failed")
			monitoring.RecordError(err)
			r.SinkErrors = append(r.SinkErrors, fmt.Sprintf("%s: %v", sink.Name(), err))
		}
	}
}

// Analyze loads the trades and derives smart ranges from their excursions
func (o *DefaultOrchestrator) Analyze(ctx context.Context, cfg *config.OptimizerConfig) (*AnalysisResult, error) {
	session, err := o.runner.Prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return analyzeSession(session, cfg.Search.MaxGridSize)
}

// analyzeSession prefers the tradelist's excursion columns and measures
// excursions from the candles when any trade lacks them
func analyzeSession(session *Session, maxGridSize int) (*AnalysisResult, error) {
	samples, missing := analysis.SamplesFromPairs(session.Dataset.Pairs)
	source := "tradelist"
	if missing > 0 {
		log.Info().Int("missing", missing).Msg("🔍 excursion columns incomplete, measuring from candles")
		samples = analysis.SamplesFromExcursions(session.Engine.Excursions())
		source = "candles"
	}

	finder := analysis.NewRangeFinder(samples, analysis.Options{MaxGridSize: maxGridSize})
	a, err := finder.Analyze()
	if err != nil {
		return nil, err
	}
	export, err := finder.Export()
	if err != nil {
		return nil, err
	}
	return &AnalysisResult{
		Source:        source,
		Analysis:      a,
		Export:        export,
		Missing:       missing,
		SkippedTrades: len(session.Engine.Skipped()),
	}, nil
}

// Simulate replays every selected trade under one tuple
func (o *DefaultOrchestrator) Simulate(ctx context.Context, cfg *config.OptimizerConfig, p backtest.Params) (*SimulationResult, error) {
	if err := p.Validate(); err != nil {
		return nil, opterrors.NewParameterError("orchestrator", "simulate", err.Error())
	}
	session, err := o.runner.Prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	metrics, err := session.Engine.Evaluate(ctx, p)
	if err != nil {
		return nil, opterrors.NewEvaluationError("orchestrator", "simulate", err)
	}
	return &SimulationResult{
		Params:        p,
		Metrics:       metrics,
		Baseline:      session.Engine.EvaluateBaseline(),
		SkippedTrades: len(session.Engine.Skipped()),
		Skipped:       session.Engine.Skipped(),
	}, nil
}
