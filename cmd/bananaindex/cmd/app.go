package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/bananaindex/internal/async"
	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/engine/meilisearch"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/index"
	"github.com/Aman-CERP/bananaindex/internal/logging"
	"github.com/Aman-CERP/bananaindex/internal/search"
	"github.com/Aman-CERP/bananaindex/internal/store"
)

// app holds the collaborators every command is built from.
type app struct {
	root   string
	cfg    *config.Config
	eng    engine.Engine
	search *search.Service

	guard    *async.IndexingGuard
	progress *async.RunProgress
	tracker  *async.Tracker
	indexer  *async.BackgroundIndexer
}

// openApp loads configuration for dir and opens the configured engine.
// ctx bounds background indexing runs started through the indexer.
func openApp(ctx context.Context, dir string) (*app, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.ConfigError("invalid root "+dir, err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	applyLogLevel(cfg)

	eng, err := openEngine(root, cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, root, cfg, eng), nil
}

// newApp wires the query service and the background indexer over eng.
func newApp(ctx context.Context, root string, cfg *config.Config, eng engine.Engine) *app {
	a := &app{
		root: root,
		cfg:  cfg,
		eng:  eng,
		search: search.NewService(eng, search.Options{
			IndexName:          cfg.Engine.IndexName,
			ResultLimit:        cfg.Search.ResultLimit,
			SuggestionLimit:    cfg.Search.SuggestionLimit,
			CacheSize:          cfg.Search.CacheSize,
			SubmoduleScanLimit: cfg.Search.SubmoduleScanLimit,
		}),
		guard:    async.NewIndexingGuard(),
		progress: async.NewRunProgress(),
	}
	a.tracker = async.NewTracker(eng, cfg.Engine.IndexName, a.guard, a.progress)
	a.indexer = async.NewBackgroundIndexer(a.guard, eng, cfg.Engine.IndexName, a.backgroundRun,
		async.WithBaseContext(ctx),
		async.WithRunProgress(a.progress))
	return a
}

// openEngine selects the engine adapter for cfg.Engine.Backend.
func openEngine(root string, cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Backend {
	case config.BackendBleve:
		eng, err := store.NewBleveEngine(cfg.DataPath(root))
		if err != nil {
			return nil, err
		}
		return eng, nil
	default:
		client, err := meilisearch.New(meilisearch.Config{
			URL:               cfg.Engine.URL,
			APIKey:            cfg.Engine.APIKey,
			Timeout:           cfg.EngineTimeout(),
			RequestsPerSecond: cfg.Engine.RequestsPerSecond,
			Breaker:           errors.NewCircuitBreaker("meilisearch"),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// applyLogLevel honours server.log_level unless --debug already chose one.
func applyLogLevel(cfg *config.Config) {
	if debugMode || cfg.Server.LogLevel == "" {
		return
	}
	lc := logging.DefaultConfig()
	lc.Level = cfg.Server.LogLevel
	lc.JSON = jsonLogs
	if logger, _, err := logging.Setup(lc); err == nil {
		slog.SetDefault(logger)
	}
}

// endpoint describes where the engine lives for status output.
func (a *app) endpoint() string {
	if a.cfg.Engine.Backend == config.BackendBleve {
		return a.cfg.DataPath(a.root)
	}
	return a.cfg.Engine.URL
}

// pipeline builds an indexing pipeline whose runs refresh the query caches.
func (a *app) pipeline(opts ...index.PipelineOption) *index.Pipeline {
	opts = append(opts, index.WithAfterRun(func(*index.RunResult) { a.search.Invalidate() }))
	return index.NewPipeline(a.root, a.cfg, a.eng, opts...)
}

// backgroundRun is the indexer's run function. It reports batch progress
// into the shared run tracker.
func (a *app) backgroundRun(ctx context.Context, rebuild bool, progress *async.RunProgress) error {
	p := a.pipeline(index.WithBatchObserver(func(b index.BatchReport) {
		progress.BatchDone(b.Index+1, b.Total)
	}))
	_, err := p.Run(ctx, index.RunOptions{Rebuild: rebuild})
	return err
}

// reindex runs the pipeline through the indexer and waits for it, so
// watch-triggered runs never overlap API-triggered ones. Settings of a
// populated index are left alone.
func (a *app) reindex(ctx context.Context) error {
	res, err := a.indexer.TriggerWith(ctx, async.TriggerOptions{SkipPopulatedCheck: true})
	if err != nil {
		return err
	}
	if res.Status != async.TriggerStarted {
		slog.Info("reindex_skipped", slog.String("status", string(res.Status)))
		return nil
	}
	return a.indexer.Wait()
}

// drainIndexer waits for a triggered run so the engine is not closed under
// it, logging the run's failure.
func (a *app) drainIndexer() {
	if err := a.indexer.Wait(); err != nil {
		slog.Warn("background_index_failed_on_shutdown", slog.String("error", err.Error()))
	}
}

func (a *app) Close() {
	if err := a.eng.Close(); err != nil {
		slog.Warn("engine_close_failed", slog.String("error", err.Error()))
	}
}
