package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/scanner"
)

// Service bundles a scheduler and the watcher feeding it.
type Service struct {
	Scheduler *Scheduler
	Watcher   *HybridWatcher
	Dirs      []string
}

// NewService discovers the source directories under root and builds the
// scheduler and watcher for them. It returns nil when no directory
// matches the configured prefixes.
func NewService(root string, cfg *config.Config, run RunFunc) *Service {
	dirs := scanner.DiscoverSourceDirs(root, cfg.Watch.Prefixes)
	if len(dirs) == 0 {
		slog.Warn("no_watch_dirs",
			slog.String("root", root),
			slog.Any("prefixes", cfg.Watch.Prefixes))
		return nil
	}

	ignore := append([]string(nil), cfg.Watch.Ignore...)
	ignore = append(ignore, filepath.Base(cfg.DataPath(root)))

	sched := NewScheduler(run,
		WithQuietPeriod(cfg.QuietPeriod()),
		WithPollInterval(cfg.PollInterval()),
		WithIgnore(ignore...))
	w := NewHybridWatcher(root, Options{
		PollInterval: DefaultOptions().PollInterval,
		Ignore:       ignore,
	})
	return &Service{Scheduler: sched, Watcher: w, Dirs: dirs}
}

// Run watches until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer func() { _ = s.Watcher.Stop() }()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Watcher.Run(ctx, s.Dirs, func(ev FileEvent) { s.Scheduler.Notify(ev) })
	})
	g.Go(func() error {
		return s.Scheduler.Run(ctx)
	})
	return g.Wait()
}

// Watch runs the reindex scheduler for root until ctx is cancelled. With
// no source directories it logs a warning and returns nil.
func Watch(ctx context.Context, root string, cfg *config.Config, run RunFunc) error {
	svc := NewService(root, cfg, run)
	if svc == nil {
		return nil
	}
	err := svc.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
