package optimization

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a point-in-time view of a running optimization
type Progress struct {
	Running             bool      `json:"running"`
	TotalCombinations   int       `json:"total_combinations"`
	CurrentProgress     int       `json:"current_progress"`
	Percent             float64   `json:"percent"`
	StartTime           time.Time `json:"start_time"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
	StatusMessage       string    `json:"status_message"`
	Aborted             bool      `json:"aborted"`
	RunID               string    `json:"run_id,omitempty"`
}

// ProgressTracker publishes progress to external observers. Counters are
// atomic so readers never block the evaluation loop; state transitions
// are serialized by the mutex.
type ProgressTracker struct {
	total     atomic.Int64
	completed atomic.Int64
	running   atomic.Bool
	aborted   atomic.Bool

	mutex     sync.RWMutex
	startTime time.Time
	status    string
	runID     string
	now       func() time.Time
}

// DefaultTracker is the process-wide tracker served over HTTP
var DefaultTracker = NewProgressTracker()

// NewProgressTracker creates an idle progress tracker
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{now: time.Now, status: "idle"}
}

// Start resets the tracker for a new run with a known total
func (pt *ProgressTracker) Start(runID string, total int) {
	if pt == nil {
		return
	}
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.total.Store(int64(total))
	pt.completed.Store(0)
	pt.aborted.Store(false)
	pt.running.Store(true)
	pt.startTime = pt.now()
	pt.runID = runID
	pt.status = "running"
}

// SetTotal publishes the total once it is known
func (pt *ProgressTracker) SetTotal(total int) {
	if pt == nil {
		return
	}
	pt.total.Store(int64(total))
}

// Increment records one finished evaluation
func (pt *ProgressTracker) Increment() {
	if pt == nil {
		return
	}
	pt.completed.Add(1)
}

// SetStatus sets the human readable status line
func (pt *ProgressTracker) SetStatus(msg string) {
	if pt == nil {
		return
	}
	pt.mutex.Lock()
	pt.status = msg
	pt.mutex.Unlock()
}

// Finish marks the run as stopped
func (pt *ProgressTracker) Finish(aborted bool, msg string) {
	if pt == nil {
		return
	}
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.running.Store(false)
	pt.aborted.Store(aborted)
	pt.status = msg
}

// Snapshot returns the current progress with an ETA extrapolated from the
// average evaluation rate so far
func (pt *ProgressTracker) Snapshot() Progress {
	pt.mutex.RLock()
	start, status, runID := pt.startTime, pt.status, pt.runID
	pt.mutex.RUnlock()

	total := int(pt.total.Load())
	done := int(pt.completed.Load())
	p := Progress{
		Running:           pt.running.Load(),
		TotalCombinations: total,
		CurrentProgress:   done,
		StartTime:         start,
		StatusMessage:     status,
		Aborted:           pt.aborted.Load(),
		RunID:             runID,
	}
	if total > 0 {
		p.Percent = float64(done) / float64(total) * 100
	}
	p.EstimatedCompletion = pt.estimateCompletion(start, done, total)
	return p
}

// EstimateTimeRemaining estimates the remaining time based on current progress
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	p := pt.Snapshot()
	if p.EstimatedCompletion.IsZero() {
		return 0
	}
	remaining := p.EstimatedCompletion.Sub(pt.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (pt *ProgressTracker) estimateCompletion(start time.Time, done, total int) time.Time {
	if start.IsZero() || done == 0 || total == 0 {
		return time.Time{}
	}
	elapsed := pt.now().Sub(start)
	if done >= total {
		return start.Add(elapsed)
	}
	avgPerItem := elapsed / time.Duration(done)
	return start.Add(elapsed + avgPerItem*time.Duration(total-done))
}
