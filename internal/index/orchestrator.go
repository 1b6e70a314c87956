// Package index pushes normalized documents into the search engine.
//
// Orchestrator owns the engine-facing steps (connect, ensure the index,
// submit batches); Pipeline strings scan, normalize and those steps together
// under a cross-process lock.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// PrimaryKey is the document attribute the engine keys on.
const PrimaryKey = "id"

// DefaultBatchSize bounds request size per submission.
const DefaultBatchSize = 100

// DefaultSettings are the attribute roles of a fresh index.
func DefaultSettings() engine.Settings {
	return engine.Settings{
		SearchableAttributes: []string{"title", "title_en", "prompt", "prompt_en", "author", "content"},
		FilterableAttributes: []string{"submodule", "type", "capability_code", "language", "author"},
		SortableAttributes:   []string{"submodule", "type"},
	}
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	IndexName string
	BatchSize int
	// TaskTimeout bounds each wait on an engine task.
	TaskTimeout time.Duration
	// PollInterval is the first task poll delay; it backs off to a second.
	PollInterval time.Duration
	Retry        errors.RetryConfig
}

// DefaultOrchestratorOptions returns the stock batch and wait bounds.
func DefaultOrchestratorOptions(indexName string) OrchestratorOptions {
	return OrchestratorOptions{
		IndexName:    indexName,
		BatchSize:    DefaultBatchSize,
		TaskTimeout:  60 * time.Second,
		PollInterval: 50 * time.Millisecond,
		Retry:        errors.DefaultRetryConfig(),
	}
}

// Orchestrator drives one engine index.
type Orchestrator struct {
	eng  engine.Engine
	opts OrchestratorOptions
}

// NewOrchestrator creates an Orchestrator. Zero option fields take defaults.
func NewOrchestrator(eng engine.Engine, opts OrchestratorOptions) *Orchestrator {
	def := DefaultOrchestratorOptions(opts.IndexName)
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = def.TaskTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Retry.InitialDelay <= 0 && opts.Retry.MaxRetries == 0 {
		opts.Retry = def.Retry
	}
	return &Orchestrator{eng: eng, opts: opts}
}

// IndexName returns the index this orchestrator writes to.
func (o *Orchestrator) IndexName() string { return o.opts.IndexName }

func (o *Orchestrator) waitOptions() engine.WaitOptions {
	return engine.WaitOptions{
		Timeout:     o.opts.TaskTimeout,
		Interval:    o.opts.PollInterval,
		MaxInterval: time.Second,
	}
}

// Connect checks the engine is reachable, retrying transient failures.
// A missing index is not a connection problem.
func (o *Orchestrator) Connect(ctx context.Context) error {
	err := errors.Retry(ctx, o.opts.Retry, func() error {
		return o.eng.Health(ctx)
	})
	if err != nil {
		slog.Error("engine_unreachable", errors.LogAttrs(err)...)
		if errors.KindOf(err) == errors.KindConnectionFailure {
			return err
		}
		return errors.New(errors.ErrCodeEngineUnreachable, "search engine health check failed", err)
	}
	slog.Debug("engine_connected", slog.String("index", o.opts.IndexName))
	return nil
}

// EnsureResult reports what EnsureIndex did.
type EnsureResult struct {
	Created         bool
	SettingsApplied bool
	// Documents is the count seen before any change.
	Documents int64
}

// EnsureIndex creates the index if absent and applies DefaultSettings
// unless the index already holds documents. force applies settings
// regardless of the document count.
func (o *Orchestrator) EnsureIndex(ctx context.Context, force bool) (EnsureResult, error) {
	var res EnsureResult
	uid := o.opts.IndexName

	stats, err := o.eng.IndexStats(ctx, uid)
	switch {
	case err == nil:
		res.Documents = stats.NumberOfDocuments
	case errors.GetCode(err) == errors.ErrCodeIndexNotFound:
		created, err := o.createIndex(ctx)
		if err != nil {
			return res, err
		}
		res.Created = created
	default:
		return res, err
	}

	if !res.Created && res.Documents >= 1 && !force {
		slog.Info("index_settings_skipped",
			slog.String("index", uid),
			slog.Int64("documents", res.Documents))
		return res, nil
	}

	info, err := o.eng.UpdateSettings(ctx, uid, DefaultSettings())
	if err != nil {
		return res, err
	}
	task, err := engine.WaitForTask(ctx, o.eng, info.TaskUID, o.waitOptions())
	if err != nil {
		if errors.KindOf(err) != errors.KindTaskTimeout {
			return res, err
		}
		slog.Warn("settings_task_timeout", errors.LogAttrs(err)...)
	} else if err := engine.TaskFailure(task); err != nil {
		return res, err
	}

	res.SettingsApplied = true
	slog.Info("index_settings_applied", slog.String("index", uid), slog.Bool("forced", force))
	return res, nil
}

// createIndex returns false when the index turned out to exist already.
func (o *Orchestrator) createIndex(ctx context.Context) (bool, error) {
	uid := o.opts.IndexName
	info, err := o.eng.CreateIndex(ctx, uid, PrimaryKey)
	if err != nil {
		if errors.KindOf(err) == errors.KindConfigurationConflict {
			slog.Info("index_exists", slog.String("index", uid))
			return false, nil
		}
		return false, err
	}

	task, err := engine.WaitForTask(ctx, o.eng, info.TaskUID, o.waitOptions())
	if err != nil {
		if errors.KindOf(err) != errors.KindTaskTimeout {
			return false, err
		}
		slog.Warn("create_index_task_timeout", errors.LogAttrs(err)...)
		return true, nil
	}
	if err := engine.TaskFailure(task); err != nil {
		if errors.KindOf(err) == errors.KindConfigurationConflict {
			slog.Info("index_exists", slog.String("index", uid))
			return false, nil
		}
		return false, err
	}

	slog.Info("index_created", slog.String("index", uid), slog.String("primary_key", PrimaryKey))
	return true, nil
}

// BatchReport describes one submitted batch.
type BatchReport struct {
	Index    int // zero-based
	Total    int
	Size     int
	TaskUID  int64
	TimedOut bool
	Err      error
}

// SubmitResult summarises SubmitDocuments.
type SubmitResult struct {
	Documents int
	Batches   int
	Succeeded int
	TimedOut  int
	Failed    int
	Errors    []error
}

// SubmitDocuments upserts docs in fixed-size batches, waiting on each
// batch's task. Timed-out waits and failed batches are recorded and the
// remaining batches still go out. Only context cancellation stops early.
func (o *Orchestrator) SubmitDocuments(ctx context.Context, docs []document.Document, onBatch func(BatchReport)) (*SubmitResult, error) {
	size := o.opts.BatchSize
	total := (len(docs) + size - 1) / size
	res := &SubmitResult{Documents: len(docs), Batches: total}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min((i+1)*size, len(docs))
		batch := docs[i*size : end]
		report := o.submitBatch(ctx, batch)
		report.Index, report.Total = i, total

		switch {
		case report.Err != nil:
			res.Failed++
			res.Errors = append(res.Errors, report.Err)
		case report.TimedOut:
			res.TimedOut++
		default:
			res.Succeeded++
		}
		if onBatch != nil {
			onBatch(report)
		}
	}

	slog.Info("documents_submitted",
		slog.String("index", o.opts.IndexName),
		slog.Int("documents", res.Documents),
		slog.Int("batches", res.Batches),
		slog.Int("timed_out", res.TimedOut),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (o *Orchestrator) submitBatch(ctx context.Context, batch []document.Document) BatchReport {
	report := BatchReport{Size: len(batch)}

	info, err := o.eng.AddDocuments(ctx, o.opts.IndexName, batch, PrimaryKey)
	if err != nil {
		report.Err = fmt.Errorf("submit batch of %d: %w", len(batch), err)
		slog.Error("batch_submit_failed", errors.LogAttrs(err)...)
		return report
	}
	report.TaskUID = info.TaskUID

	task, err := engine.WaitForTask(ctx, o.eng, info.TaskUID, o.waitOptions())
	if err != nil {
		if errors.KindOf(err) == errors.KindTaskTimeout {
			report.TimedOut = true
			slog.Warn("batch_task_timeout",
				slog.Int64("task_uid", info.TaskUID),
				slog.Int("size", len(batch)),
				slog.Duration("waited", o.opts.TaskTimeout))
			return report
		}
		report.Err = err
		slog.Error("batch_wait_failed", errors.LogAttrs(err)...)
		return report
	}
	if err := engine.TaskFailure(task); err != nil {
		report.Err = err
		slog.Error("batch_task_failed", errors.LogAttrs(err)...)
	}
	return report
}
