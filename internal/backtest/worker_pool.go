package backtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// WorkerPool manages parallel evaluation of parameter tuples
type WorkerPool struct {
	workerCount int
	evaluator   Evaluator
	timeout     time.Duration
	jobQueue    chan EvaluationJob
	resultQueue chan EvaluationResult
	wg          sync.WaitGroup
	closeOnce   sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
}

// EvaluationJob represents a single evaluation task
type EvaluationJob struct {
	ID     int
	Params Params
}

// EvaluationResult represents the result of an evaluation job
type EvaluationResult struct {
	ID       int
	Params   Params
	Metrics  *PortfolioMetrics
	Duration time.Duration
	Error    error
}

// Failed reports whether the evaluation produced no metrics
func (r EvaluationResult) Failed() bool {
	return r.Error != nil || r.Metrics == nil
}

// Skipped reports whether the tuple was never evaluated because the run
// was cancelled first
func (r EvaluationResult) Skipped() bool {
	return errors.Is(r.Error, context.Canceled)
}

// NewWorkerPool creates a new worker pool. workerCount <= 0 uses one worker
// per logical CPU; timeout <= 0 disables the per-evaluation deadline.
func NewWorkerPool(parent context.Context, workerCount, jobBufferSize int, evaluator Evaluator, timeout time.Duration) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobBufferSize <= 0 {
		jobBufferSize = workerCount * 2
	}

	ctx, cancel := context.WithCancel(parent)

	return &WorkerPool{
		workerCount: workerCount,
		evaluator:   evaluator,
		timeout:     timeout,
		jobQueue:    make(chan EvaluationJob, jobBufferSize),
		resultQueue: make(chan EvaluationResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// WorkerCount returns the number of workers
func (wp *WorkerPool) WorkerCount() int {
	return wp.workerCount
}

// Start starts the workers. The result channel is closed once every worker
// has exited.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	go func() {
		wp.wg.Wait()
		close(wp.resultQueue)
	}()
}

// CloseJobs signals that no more jobs will be submitted
func (wp *WorkerPool) CloseJobs() {
	wp.closeOnce.Do(func() { close(wp.jobQueue) })
}

// Stop closes the job queue and cancels idle workers
func (wp *WorkerPool) Stop() {
	wp.CloseJobs()
	wp.cancel()
}

// SubmitJob submits an evaluation job to the pool
func (wp *WorkerPool) SubmitJob(job EvaluationJob) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	default:
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// GetResults returns the result channel for collecting completed jobs
func (wp *WorkerPool) GetResults() <-chan EvaluationResult {
	return wp.resultQueue
}

// worker processes evaluation jobs. Cancellation is observed between jobs;
// an evaluation already in progress runs to completion or to its timeout.
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			if wp.ctx.Err() != nil {
				return
			}
			wp.resultQueue <- wp.processJob(job)

		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs a single evaluation
func (wp *WorkerPool) processJob(job EvaluationJob) (result EvaluationResult) {
	startTime := time.Now()
	result = EvaluationResult{ID: job.ID, Params: job.Params}

	defer func() {
		if r := recover(); r != nil {
			result.Metrics = nil
			result.Error = opterrors.NewEvaluationError("worker_pool", "evaluate", fmt.Errorf("panic: %v", r)).
				WithContext("params", job.Params.String())
		}
		result.Duration = time.Since(startTime)
	}()

	evalCtx := context.WithoutCancel(wp.ctx)
	if wp.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(evalCtx, wp.timeout)
		defer cancel()
	}

	metrics, err := wp.evaluator.Evaluate(evalCtx, job.Params)
	switch {
	case err == nil:
		result.Metrics = metrics
	case errors.Is(err, context.DeadlineExceeded):
		result.Error = opterrors.NewTimeoutError("worker_pool", "evaluate", opterrors.ErrEvaluationTimeout).
			WithContext("params", job.Params.String()).
			WithContext("timeout", wp.timeout)
	default:
		result.Error = err
	}
	return result
}

// EvaluateBatch evaluates a fixed set of tuples in parallel and returns the
// results in input order.
func EvaluateBatch(ctx context.Context, evaluator Evaluator, params []Params, workerCount int, timeout time.Duration) []EvaluationResult {
	pool := NewWorkerPool(ctx, workerCount, len(params), evaluator, timeout)
	pool.Start()

	go func() {
		defer pool.CloseJobs()
		for i, p := range params {
			if err := pool.SubmitJob(EvaluationJob{ID: i, Params: p}); err != nil {
				return
			}
		}
	}()

	results := make([]EvaluationResult, len(params))
	seen := make([]bool, len(params))
	for res := range pool.GetResults() {
		results[res.ID] = res
		seen[res.ID] = true
	}
	pool.Stop()

	for i := range results {
		if !seen[i] {
			results[i] = EvaluationResult{ID: i, Params: params[i], Error: context.Canceled}
		}
	}
	return results
}
