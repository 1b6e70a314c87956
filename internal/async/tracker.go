package async

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// State classifies the index as seen by Tracker.
type State string

const (
	StateNotConnected State = "not_connected"
	StateIndexAbsent  State = "index_absent"
	StateIndexEmpty   State = "index_empty"
	StateIndexing     State = "indexing_in_progress"
	StateIndexed      State = "indexed"
)

const (
	// UnknownETASeconds is reported when progress cannot be estimated.
	UnknownETASeconds = 180
	minETASeconds     = 30
	secondsPerPercent = 2
	// runningCap keeps progress below 100 until the engine confirms.
	runningCap = 95
	// guardFloor is the minimum progress shown while a local run holds
	// the guard.
	guardFloor = 5
	recentTasks = 10
)

// Progress is the indexing status payload.
type Progress struct {
	Indexed       bool   `json:"indexed"`
	Progress      int    `json:"progress"`
	DocumentCount int64  `json:"document_count"`
	IsIndexing    bool   `json:"is_indexing"`
	ETASeconds    *int   `json:"eta_seconds,omitempty"`
	State         State  `json:"state"`
	Message       string `json:"message"`
}

// EstimateETA returns seconds remaining for a run at progress percent.
// Unknown or zero progress gives UnknownETASeconds.
func EstimateETA(progress int, known bool) int {
	if !known || progress <= 0 {
		return UnknownETASeconds
	}
	return max(minETASeconds, (100-progress)*secondsPerPercent)
}

// Tracker derives indexing progress from the engine, overlaid with the
// in-process guard and run progress.
type Tracker struct {
	eng   engine.Engine
	index string
	guard *IndexingGuard
	run   *RunProgress

	mu       sync.Mutex
	floorGen uint64
	floor    int
}

// NewTracker creates a tracker. guard and run may be nil.
func NewTracker(eng engine.Engine, index string, guard *IndexingGuard, run *RunProgress) *Tracker {
	if guard == nil {
		guard = NewIndexingGuard()
	}
	if run == nil {
		run = NewRunProgress()
	}
	return &Tracker{eng: eng, index: index, guard: guard, run: run}
}

// Progress reports the current state. It never fails; engine errors
// degrade to not_connected.
func (t *Tracker) Progress(ctx context.Context) Progress {
	if err := t.eng.Health(ctx); err != nil {
		slog.Debug("progress_engine_unreachable", errors.LogAttrs(err)...)
		return Progress{State: StateNotConnected, Message: "Search engine is not reachable"}
	}

	stats, err := t.eng.IndexStats(ctx, t.index)
	if err != nil {
		if errors.KindOf(err) != errors.KindNotFound {
			slog.Debug("progress_stats_failed", errors.LogAttrs(err)...)
			return Progress{State: StateNotConnected, Message: "Search engine is not reachable"}
		}
		eta := UnknownETASeconds
		p := Progress{State: StateIndexAbsent, ETASeconds: &eta, Message: "Index has not been created yet"}
		return t.overlay(p, false)
	}

	p := Progress{
		DocumentCount: stats.NumberOfDocuments,
		Indexed:       stats.NumberOfDocuments > 0,
	}
	if p.Indexed {
		p.Progress = 100
	}

	known := false
	if task, ok := t.activeTask(ctx); ok {
		p.IsIndexing = true
		if d := task.Details; d.ReceivedDocuments != nil && *d.ReceivedDocuments > 0 {
			var indexed int64
			if d.IndexedDocuments != nil {
				indexed = *d.IndexedDocuments
			}
			p.Progress = int(indexed * 100 / *d.ReceivedDocuments)
			known = true
		}
		p.Progress = min(p.Progress, runningCap)
	}
	return t.overlay(t.classify(p, known), known)
}

// classify sets state, message and ETA from the engine-only view.
func (t *Tracker) classify(p Progress, known bool) Progress {
	switch {
	case p.IsIndexing:
		p.State = StateIndexing
		p.Message = "Indexing in progress"
		eta := EstimateETA(p.Progress, known)
		p.ETASeconds = &eta
	case p.Indexed:
		p.State = StateIndexed
		p.Message = "Index is ready"
	default:
		p.State = StateIndexEmpty
		p.Message = "Index is empty"
	}
	return p
}

// overlay folds in the local run: while the guard is held the run counts
// as indexing whatever the engine shows, and progress never goes
// backwards within one run.
func (t *Tracker) overlay(p Progress, known bool) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.guard.Active() {
		t.floorGen, t.floor = 0, 0
		return p
	}

	// Without an engine task the document count says nothing about this run.
	if !p.IsIndexing {
		p.Progress = 0
	}
	p.IsIndexing = true
	p.State = StateIndexing
	p.Message = "Indexing in progress"
	p.Progress = max(min(p.Progress, runningCap), guardFloor)

	if local := t.run.Percent(); local >= 0 {
		p.Progress = max(p.Progress, min(local, runningCap))
		known = true
	}

	gen := t.guard.Generation()
	if gen != t.floorGen {
		t.floorGen, t.floor = gen, 0
	}
	p.Progress = max(p.Progress, t.floor)
	t.floor = p.Progress

	eta := EstimateETA(p.Progress, known)
	p.ETASeconds = &eta
	return p
}

// activeTask returns the newest enqueued or processing document addition.
func (t *Tracker) activeTask(ctx context.Context) (engine.Task, bool) {
	tasks, err := t.eng.ListTasks(ctx, engine.TaskQuery{
		IndexUID: t.index,
		Types:    []string{engine.TaskTypeDocumentAddition},
		Limit:    recentTasks,
	})
	if err != nil {
		slog.Debug("progress_tasks_failed", errors.LogAttrs(err)...)
		return engine.Task{}, false
	}
	for _, task := range tasks {
		if task.Status == engine.TaskEnqueued || task.Status == engine.TaskProcessing {
			return task, true
		}
	}
	return engine.Task{}, false
}
