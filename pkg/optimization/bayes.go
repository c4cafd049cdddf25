package optimization

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

const (
	DefaultTrials = 50
	MinTrials     = 10
	MaxTrials     = 500
)

// ClampTrials bounds a requested trial count; 0 selects the default
func ClampTrials(n int) int {
	switch {
	case n == 0:
		return DefaultTrials
	case n < MinTrials:
		return MinTrials
	case n > MaxTrials:
		return MaxTrials
	}
	return n
}

// BayesianSearcher runs a TPE study over the search space. Workers share
// one study and pull trials until the budget is spent.
type BayesianSearcher struct{}

type bayesRun struct {
	evaluator backtest.Evaluator
	space     SearchSpace
	opts      SearchOptions
	penalty   float64

	mutex    sync.Mutex
	seen     map[string]float64
	result   *SearchResult
	finished atomic.Int64
}

// Search evaluates ClampTrials(opts.Trials) suggested tuples. Each tuple is
// snapped to its range step; repeated tuples reuse the first evaluation.
func (b *BayesianSearcher) Search(ctx context.Context, evaluator backtest.Evaluator, space SearchSpace, opts SearchOptions) (*SearchResult, error) {
	if err := space.Validate(); err != nil {
		return nil, opterrors.NewConfigurationError("bayesian_search", "validate_space", err.Error())
	}

	start := time.Now()
	trials := ClampTrials(opts.Trials)
	direction := goptuna.StudyDirectionMaximize
	penalty := -backtest.InfSentinel
	if opts.Objective.Minimize() {
		direction = goptuna.StudyDirectionMinimize
		penalty = backtest.InfSentinel
	}

	study, err := goptuna.CreateStudy(
		fmt.Sprintf("sl-optimizer-%d", start.UnixNano()),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(opts.Seed))),
		goptuna.StudyOptionDirection(direction),
		goptuna.StudyOptionLogger(studyLogger{logger: log.Logger}),
	)
	if err != nil {
		return nil, opterrors.NewEvaluationError("bayesian_search", "create_study", err)
	}

	run := &bayesRun{
		evaluator: evaluator,
		space:     space.Effective(),
		opts:      opts,
		penalty:   penalty,
		seen:      make(map[string]float64),
		result:    &SearchResult{Mode: ModeBayesian, Total: trials},
	}
	opts.Tracker.SetTotal(trials)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > trials {
		workers = trials
	}

	log.Info().Int("trials", trials).Int("workers", workers).Str("objective", string(opts.Objective)).
		Msg("🎯 bayesian search started")

	// Objectives only fail on cancellation, so any other error comes from
	// the study itself and stops the search.
	var claimed atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for claimed.Add(1) <= int64(trials) {
				if egCtx.Err() != nil {
					return nil
				}
				if err := study.Optimize(run.objective(egCtx), 1); err != nil {
					if egCtx.Err() != nil {
						return nil
					}
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, opterrors.NewEvaluationError("bayesian_search", "optimize", err)
	}

	res := run.result
	res.Evaluated = int(run.finished.Load())
	res.Aborted = ctx.Err() != nil && res.Evaluated < trials
	res.Elapsed = time.Since(start)
	return res, nil
}

// objective builds the goptuna objective for one trial
func (r *bayesRun) objective(ctx context.Context) goptuna.FuncObjective {
	return func(trial goptuna.Trial) (score float64, err error) {
		defer func() {
			if err != nil {
				return
			}
			r.finished.Add(1)
			r.opts.Tracker.Increment()
		}()

		p, err := r.suggest(trial)
		if err != nil {
			return r.penalty, nil
		}
		if p.Validate() != nil {
			r.mutex.Lock()
			r.result.Rejected++
			r.mutex.Unlock()
			return r.penalty, nil
		}

		key := p.Key()
		r.mutex.Lock()
		if score, ok := r.seen[key]; ok {
			r.mutex.Unlock()
			return score, nil
		}
		r.mutex.Unlock()

		res := backtest.EvaluateBatch(ctx, r.evaluator, []backtest.Params{p}, 1, r.opts.Timeout)[0]
		if res.Skipped() {
			return 0, res.Error
		}

		r.mutex.Lock()
		defer r.mutex.Unlock()
		if _, ok := r.seen[key]; ok {
			return r.seen[key], nil
		}
		if !collect(r.result, res) {
			r.seen[key] = r.penalty
			return r.penalty, nil
		}
		score = backtest.SanitizeFloat(ObjectiveValue(res.Metrics, r.opts.Objective))
		r.seen[key] = score
		return score, nil
	}
}

// suggest draws the four parameters. A fixed range uses its value and a
// disabled family stays 0.
func (r *bayesRun) suggest(trial goptuna.Trial) (backtest.Params, error) {
	var p backtest.Params
	var err error
	if p.SL, err = suggestIn(trial, "sl", r.space.SL); err != nil {
		return p, err
	}
	if p.BE, err = suggestIn(trial, "be", r.space.BE); err != nil {
		return p, err
	}
	if p.TSTrigger, err = suggestIn(trial, "ts_trig", r.space.TSTrigger); err != nil {
		return p, err
	}
	if p.TSStep, err = suggestIn(trial, "ts_step", r.space.TSStep); err != nil {
		return p, err
	}
	return p, nil
}

func suggestIn(trial goptuna.Trial, name string, rng ParamRange) (float64, error) {
	if rng.Max <= rng.Min {
		return round(rng.Min), nil
	}
	v, err := trial.SuggestFloat(name, rng.Min, rng.Max)
	if err != nil {
		return 0, err
	}
	if rng.Step <= 0 {
		return round(v), nil
	}
	return rng.Snap(v), nil
}

// studyLogger routes goptuna's log lines to zerolog at debug level
type studyLogger struct {
	logger zerolog.Logger
}

func (l studyLogger) Debug(msg string, fields ...interface{}) { l.emit(l.logger.Debug(), msg, fields) }
func (l studyLogger) Info(msg string, fields ...interface{})  { l.emit(l.logger.Debug(), msg, fields) }
func (l studyLogger) Warn(msg string, fields ...interface{})  { l.emit(l.logger.Warn(), msg, fields) }
func (l studyLogger) Error(msg string, fields ...interface{}) { l.emit(l.logger.Error(), msg, fields) }

func (l studyLogger) emit(ev *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		ev = ev.Interface(fmt.Sprint(fields[i]), fields[i+1])
	}
	ev.Str("component", "goptuna").Msg(msg)
}
