// Package async runs indexing in the background and reports its progress.
package async

import (
	"sync"
	"time"
)

// RunStage is the stage of the in-process run.
type RunStage string

const (
	RunStageIdle       RunStage = "idle"
	RunStageStarting   RunStage = "starting"
	RunStageSubmitting RunStage = "submitting"
	RunStageDone       RunStage = "done"
	RunStageFailed     RunStage = "failed"
)

// RunProgressSnapshot is an immutable copy of RunProgress.
type RunProgressSnapshot struct {
	Stage          RunStage `json:"stage"`
	BatchesTotal   int      `json:"batches_total"`
	BatchesDone    int      `json:"batches_done"`
	ElapsedSeconds int      `json:"elapsed_seconds"`
	ErrorMessage   string   `json:"error_message,omitempty"`
}

// RunProgress tracks the local view of a background run. The engine view
// (Tracker) is authoritative; this fills the gap while the engine has
// nothing to report yet.
type RunProgress struct {
	mu sync.RWMutex

	stage        RunStage
	batchesTotal int
	batchesDone  int
	startTime    time.Time
	errorMessage string
}

// NewRunProgress creates an idle tracker.
func NewRunProgress() *RunProgress {
	return &RunProgress{stage: RunStageIdle}
}

// Begin resets the tracker for a new run.
func (p *RunProgress) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = RunStageStarting
	p.batchesTotal = 0
	p.batchesDone = 0
	p.startTime = time.Now()
	p.errorMessage = ""
}

// BatchDone records a finished batch out of total.
func (p *RunProgress) BatchDone(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = RunStageSubmitting
	p.batchesDone = done
	p.batchesTotal = total
}

// Finish marks the run complete, or failed when err is non-nil.
func (p *RunProgress) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.stage = RunStageFailed
		p.errorMessage = err.Error()
		return
	}
	p.stage = RunStageDone
}

// Percent returns batch completion in [0,100], or -1 when no batch has
// been counted yet.
func (p *RunProgress) Percent() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.batchesTotal == 0 {
		return -1
	}
	return p.batchesDone * 100 / p.batchesTotal
}

// Snapshot returns an immutable copy of the current state.
func (p *RunProgress) Snapshot() RunProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var elapsed int
	if !p.startTime.IsZero() {
		elapsed = int(time.Since(p.startTime).Seconds())
	}
	return RunProgressSnapshot{
		Stage:          p.stage,
		BatchesTotal:   p.batchesTotal,
		BatchesDone:    p.batchesDone,
		ElapsedSeconds: elapsed,
		ErrorMessage:   p.errorMessage,
	}
}
