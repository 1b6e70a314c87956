package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches source directories with fsnotify, falling back to
// polling when fsnotify cannot start.
type HybridWatcher struct {
	root        string
	opts        Options
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	stopCh      chan struct{}
	mu          sync.Mutex
	stopped     bool
	watched     atomic.Int64
}

// NewHybridWatcher creates a watcher reporting paths relative to root.
func NewHybridWatcher(root string, opts Options) *HybridWatcher {
	opts = opts.WithDefaults()
	h := &HybridWatcher{
		root:   root,
		opts:   opts,
		stopCh: make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			h.fsWatcher = fsw
			h.useFsnotify = true
			return h
		}
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
	}
	h.pollWatcher = NewPollingWatcher(root, opts.PollInterval, opts.Ignore)
	return h
}

// Run watches dirs recursively and calls notify for every file event until
// ctx is cancelled or Stop is called.
func (h *HybridWatcher) Run(ctx context.Context, dirs []string, notify NotifyFunc) error {
	if h.useFsnotify {
		return h.runFsnotify(ctx, dirs, notify)
	}
	return h.pollWatcher.Run(ctx, dirs, notify)
}

func (h *HybridWatcher) runFsnotify(ctx context.Context, dirs []string, notify NotifyFunc) error {
	for _, dir := range dirs {
		if err := h.addRecursive(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	slog.Info("watch_started",
		slog.String("mode", h.WatcherType()),
		slog.Int("sources", len(dirs)),
		slog.Int64("directories", h.watched.Load()))

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			if ev, ok := h.convert(event); ok {
				notify(ev)
			}
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// convert maps an fsnotify event, adding newly created directories to the
// watch set.
func (h *HybridWatcher) convert(event fsnotify.Event) (FileEvent, bool) {
	rel, err := filepath.Rel(h.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir && !matchesAny(rel, h.opts.Ignore) {
			if err := h.addRecursive(event.Name); err != nil {
				slog.Warn("watch_add_failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return FileEvent{}, false
	}

	return FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()}, true
}

// addRecursive adds dir and its non-ignored subdirectories.
func (h *HybridWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir {
			rel, _ := filepath.Rel(h.root, path)
			if matchesAny(filepath.ToSlash(rel), h.opts.Ignore) {
				return filepath.SkipDir
			}
		}
		if err := h.fsWatcher.Add(path); err != nil {
			return err
		}
		h.watched.Add(1)
		return nil
	})
}

// Stop stops the watcher and releases resources. Safe to call repeatedly.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)

	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}
	return nil
}

// WatcherType returns "fsnotify" or "polling".
func (h *HybridWatcher) WatcherType() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// WatchedDirs returns how many directories fsnotify is watching.
func (h *HybridWatcher) WatchedDirs() int64 {
	return h.watched.Load()
}
