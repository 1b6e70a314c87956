package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// TriggerStatus is the outcome of a trigger request.
type TriggerStatus string

const (
	TriggerRunning  TriggerStatus = "running"
	TriggerComplete TriggerStatus = "complete"
	TriggerStarted  TriggerStatus = "started"
)

// TriggerResult is returned by BackgroundIndexer.Trigger.
type TriggerResult struct {
	Message string        `json:"message"`
	Status  TriggerStatus `json:"status"`
}

// TriggerOptions controls a trigger request.
type TriggerOptions struct {
	// SkipPopulatedCheck starts a run even when the index holds documents.
	SkipPopulatedCheck bool
	// Rebuild re-applies index settings on a populated index.
	Rebuild bool
}

// RunFunc performs one indexing run. rebuild re-applies settings even when
// the index already holds documents.
type RunFunc func(ctx context.Context, rebuild bool, progress *RunProgress) error

// BackgroundIndexer starts indexing runs on demand, at most one at a time.
type BackgroundIndexer struct {
	guard    *IndexingGuard
	eng      engine.Engine
	index    string
	run      RunFunc
	progress *RunProgress
	baseCtx  context.Context

	mu      sync.Mutex
	done    chan struct{}
	lastErr error
}

// IndexerOption configures a BackgroundIndexer.
type IndexerOption func(*BackgroundIndexer)

// WithBaseContext sets the context background runs derive from. Runs are
// detached from the trigger request's context.
func WithBaseContext(ctx context.Context) IndexerOption {
	return func(b *BackgroundIndexer) {
		b.baseCtx = ctx
	}
}

// WithRunProgress shares an existing RunProgress, typically the one the
// Tracker reads.
func WithRunProgress(p *RunProgress) IndexerOption {
	return func(b *BackgroundIndexer) {
		b.progress = p
	}
}

// NewBackgroundIndexer creates an indexer guarded by guard.
func NewBackgroundIndexer(guard *IndexingGuard, eng engine.Engine, index string, run RunFunc, opts ...IndexerOption) *BackgroundIndexer {
	b := &BackgroundIndexer{
		guard:    guard,
		eng:      eng,
		index:    index,
		run:      run,
		progress: NewRunProgress(),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Progress returns the run progress updated by background runs.
func (b *BackgroundIndexer) Progress() *RunProgress {
	return b.progress
}

// Running reports whether a run holds the guard.
func (b *BackgroundIndexer) Running() bool {
	return b.guard.Active()
}

// Trigger starts a background run unless one is in flight or, without
// force, the index already has documents. force also rebuilds settings.
// It fails only when the engine cannot be reached.
func (b *BackgroundIndexer) Trigger(ctx context.Context, force bool) (TriggerResult, error) {
	return b.TriggerWith(ctx, TriggerOptions{SkipPopulatedCheck: force, Rebuild: force})
}

// TriggerWith is Trigger with the populated-index check and the settings
// rebuild controlled separately.
func (b *BackgroundIndexer) TriggerWith(ctx context.Context, opts TriggerOptions) (TriggerResult, error) {
	if b.guard.Active() {
		return TriggerResult{Message: "Indexing already in progress", Status: TriggerRunning}, nil
	}

	if err := b.eng.Health(ctx); err != nil {
		return TriggerResult{}, errors.New(errors.ErrCodeEngineUnreachable, "cannot trigger indexing", err)
	}

	if !opts.SkipPopulatedCheck {
		stats, err := b.eng.IndexStats(ctx, b.index)
		switch {
		case err == nil && stats.NumberOfDocuments > 0:
			return TriggerResult{
				Message: "Index already exists",
				Status:  TriggerComplete,
			}, nil
		case err != nil && errors.KindOf(err) != errors.KindNotFound:
			return TriggerResult{}, errors.New(errors.ErrCodeEngineUnreachable, "cannot read index stats", err)
		}
	}

	gen, ok := b.guard.TryAcquire()
	if !ok {
		return TriggerResult{Message: "Indexing already in progress", Status: TriggerRunning}, nil
	}

	done := make(chan struct{})
	b.mu.Lock()
	b.done = done
	b.lastErr = nil
	b.mu.Unlock()

	b.progress.Begin()
	go b.execute(gen, opts.Rebuild, done)

	slog.Info("index_triggered",
		slog.Bool("skip_populated_check", opts.SkipPopulatedCheck),
		slog.Bool("rebuild", opts.Rebuild),
		slog.Uint64("generation", gen))
	return TriggerResult{Message: "Indexing started", Status: TriggerStarted}, nil
}

func (b *BackgroundIndexer) execute(gen uint64, rebuild bool, done chan struct{}) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(fmt.Sprintf("indexing panicked: %v", r), nil)
		}
		if err != nil {
			slog.Error("background_index_failed", errors.LogAttrs(err)...)
		}
		b.progress.Finish(err)
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
		b.guard.Release(gen)
		close(done)
	}()

	err = b.run(b.baseCtx, rebuild, b.progress)
}

// Wait blocks until the latest run finishes and returns its error. It
// returns nil immediately when no run was started.
func (b *BackgroundIndexer) Wait() error {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// LastError returns the error of the latest finished run.
func (b *BackgroundIndexer) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}
