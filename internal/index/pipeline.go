package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/normalize"
	"github.com/Aman-CERP/bananaindex/internal/scanner"
	"github.com/Aman-CERP/bananaindex/internal/ui"
)

// RunOptions tunes one pipeline run.
type RunOptions struct {
	// Rebuild re-applies index settings even when the index is populated.
	Rebuild bool
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	RunID     string
	Sources   int
	Skipped   int // descriptors without a usable directory
	Documents int
	Issues    int // items skipped during extraction
	// Declined is set when normalization produced nothing and the engine
	// was left untouched.
	Declined bool
	Ensure   EnsureResult
	Submit   *SubmitResult
	Duration time.Duration
	Stages   ui.StageTimings
}

// Pipeline runs scan → normalize → connect → ensure → submit.
type Pipeline struct {
	root       string
	cfg        *config.Config
	eng        engine.Engine
	orch       *Orchestrator
	normalizer *normalize.Normalizer
	renderer   ui.Renderer
	onBatch    func(BatchReport)
	afterRun   []func(*RunResult)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRenderer sets the progress renderer. Default: ui.Discard().
func WithRenderer(r ui.Renderer) PipelineOption {
	return func(p *Pipeline) { p.renderer = r }
}

// WithBatchObserver is called after every submitted batch.
func WithBatchObserver(fn func(BatchReport)) PipelineOption {
	return func(p *Pipeline) { p.onBatch = fn }
}

// WithAfterRun registers a hook called after each run that reached the
// engine, successful or not.
func WithAfterRun(fn func(*RunResult)) PipelineOption {
	return func(p *Pipeline) { p.afterRun = append(p.afterRun, fn) }
}

// NewPipeline creates a pipeline over root using cfg and eng.
func NewPipeline(root string, cfg *config.Config, eng engine.Engine, opts ...PipelineOption) *Pipeline {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	p := &Pipeline{
		root: abs,
		cfg:  cfg,
		eng:  eng,
		orch: NewOrchestrator(eng, OrchestratorOptions{
			IndexName:   cfg.Engine.IndexName,
			BatchSize:   cfg.Index.BatchSize,
			TaskTimeout: cfg.TaskTimeout(),
		}),
		normalizer: normalize.New(abs, normalize.WithWorkers(cfg.Index.Workers)),
		renderer:   ui.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Orchestrator exposes the engine-facing half of the pipeline.
func (p *Pipeline) Orchestrator() *Orchestrator { return p.orch }

// Root returns the absolute pipeline root.
func (p *Pipeline) Root() string { return p.root }

// Run executes one full pass under the data dir lock.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	lock := NewFileLock(p.cfg.DataPath(p.root))
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("lock_release_failed", slog.String("error", err.Error()))
		}
	}()

	start := time.Now()
	res := &RunResult{RunID: uuid.NewString()}
	log := slog.With(slog.String("run_id", res.RunID))
	log.Info("index_run_started", slog.String("root", p.root), slog.Bool("rebuild", opts.Rebuild))

	// Stage 1: descriptors
	stageStart := time.Now()
	descriptorPath := filepath.Join(p.root, p.cfg.Submodules.File)
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Reading %s", descriptorPath),
	})
	subs := scanner.Filter(scanner.ScanFile(descriptorPath), p.cfg.Submodules.Include, p.cfg.Submodules.Exclude)
	res.Stages.Scan = time.Since(stageStart)
	log.Info("index_scan_complete", slog.Int("submodules", len(subs)))

	// Stage 2: documents
	stageStart = time.Now()
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageNormalizing,
		Message: fmt.Sprintf("Extracting from %d submodules", len(subs)),
	})
	norm, err := p.normalizer.Normalize(ctx, subs)
	if err != nil {
		return nil, err
	}
	res.Stages.Normalize = time.Since(stageStart)
	res.Sources = len(subs) - len(norm.Skipped)
	res.Skipped = len(norm.Skipped)
	res.Documents = len(norm.Documents)
	res.Issues = len(norm.Issues)
	for _, is := range norm.Issues {
		p.renderer.AddError(ui.ErrorEvent{Item: is.Path, Err: is.Err, IsWarn: true})
	}
	for _, sub := range norm.Skipped {
		p.renderer.AddError(ui.ErrorEvent{
			Item:   sub.Name,
			Err:    errors.New(errors.ErrCodeFileNotFound, "submodule directory missing: "+sub.Path, nil),
			IsWarn: true,
		})
	}

	if len(norm.Documents) == 0 {
		res.Declined = true
		res.Duration = time.Since(start)
		log.Warn("index_declined",
			errors.LogAttrs(errors.New(errors.ErrCodeNoDocuments, "no documents to index", nil))...)
		p.renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("no documents found, index left unchanged"), IsWarn: true})
		return res, nil
	}

	// Stage 3: engine
	stageStart = time.Now()
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageConnecting,
		Message: fmt.Sprintf("Preparing index %s", p.orch.IndexName()),
	})
	if err := p.orch.Connect(ctx); err != nil {
		p.renderer.AddError(ui.ErrorEvent{Err: err})
		return nil, err
	}
	ensure, err := p.orch.EnsureIndex(ctx, opts.Rebuild)
	res.Ensure = ensure
	if err != nil {
		p.renderer.AddError(ui.ErrorEvent{Err: err})
		p.finish(res)
		return nil, err
	}
	res.Stages.Connect = time.Since(stageStart)

	// Stage 4: batches
	stageStart = time.Now()
	submit, err := p.orch.SubmitDocuments(ctx, norm.Documents, func(b BatchReport) {
		p.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageSubmitting,
			Current: b.Index + 1,
			Total:   b.Total,
			Item:    fmt.Sprintf("batch %d (%d documents)", b.Index+1, b.Size),
		})
		if b.Err != nil {
			p.renderer.AddError(ui.ErrorEvent{Item: fmt.Sprintf("batch %d", b.Index+1), Err: b.Err})
		} else if b.TimedOut {
			p.renderer.AddError(ui.ErrorEvent{
				Item:   fmt.Sprintf("batch %d", b.Index+1),
				Err:    fmt.Errorf("task %d still processing after %s", b.TaskUID, p.cfg.TaskTimeout()),
				IsWarn: true,
			})
		}
		if p.onBatch != nil {
			p.onBatch(b)
		}
	})
	res.Submit = submit
	res.Stages.Submit = time.Since(stageStart)
	res.Duration = time.Since(start)
	p.finish(res)
	if err != nil {
		return res, err
	}

	p.renderer.Complete(ui.CompletionStats{
		RunID:     res.RunID,
		Engine:    p.cfg.Engine.Backend,
		Index:     p.orch.IndexName(),
		Sources:   res.Sources,
		Documents: res.Documents,
		Batches:   submit.Batches,
		TimedOut:  submit.TimedOut,
		Duration:  res.Duration,
		Errors:    submit.Failed,
		Warnings:  res.Issues + res.Skipped + submit.TimedOut,
		Stages:    res.Stages,
	})

	log.Info("index_complete",
		slog.Int("sources", res.Sources),
		slog.Int("documents", res.Documents),
		slog.Int("issues", res.Issues),
		slog.Int("batches", submit.Batches),
		slog.Int("timed_out", submit.TimedOut),
		slog.Int("failed", submit.Failed),
		slog.Bool("index_created", res.Ensure.Created),
		slog.Bool("settings_applied", res.Ensure.SettingsApplied),
		slog.Int64("duration_total_ms", res.Duration.Milliseconds()),
		slog.Int64("duration_scan_ms", res.Stages.Scan.Milliseconds()),
		slog.Int64("duration_normalize_ms", res.Stages.Normalize.Milliseconds()),
		slog.Int64("duration_connect_ms", res.Stages.Connect.Milliseconds()),
		slog.Int64("duration_submit_ms", res.Stages.Submit.Milliseconds()))
	return res, nil
}

func (p *Pipeline) finish(res *RunResult) {
	for _, fn := range p.afterRun {
		fn(res)
	}
}
