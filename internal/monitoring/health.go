package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// maxHealthErrors bounds the error list kept for the health report
const maxHealthErrors = 10

// HealthChecker tracks the state of the optimizer process
type HealthChecker struct {
	mu        sync.RWMutex
	running   bool
	lastRunID string
	lastRunAt time.Time
	aborted   bool
	errors    []string
}

// HealthStatus is the JSON body of the health endpoint
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Running   bool      `json:"running"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// RunStarted marks a run as in progress
func (h *HealthChecker) RunStarted(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = true
	h.lastRunID = runID
}

// RunFinished records the end of a run and its error, if any
func (h *HealthChecker) RunFinished(runID string, aborted bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.lastRunID = runID
	h.lastRunAt = time.Now()
	h.aborted = aborted
	if err != nil {
		h.errors = append(h.errors, err.Error())
		if len(h.errors) > maxHealthErrors {
			h.errors = h.errors[len(h.errors)-maxHealthErrors:]
		}
	}
}

// Status builds the current health report
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.aborted {
		status = "degraded"
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
	}
	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Running:   h.running,
		LastRunID: h.lastRunID,
		LastRunAt: h.lastRunAt,
		Uptime:    time.Since(startTime).String(),
		Errors:    append([]string(nil), h.errors...),
	}
}

// HTTPCode maps a health status to a response code
func (s HealthStatus) HTTPCode() int {
	switch s.Status {
	case "unhealthy":
		return http.StatusInternalServerError
	case "degraded":
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(health.HTTPCode())
	json.NewEncoder(w).Encode(health)
}
