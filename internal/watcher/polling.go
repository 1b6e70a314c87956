package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// PollingWatcher detects changes by periodically walking the source
// directories. Used when fsnotify is not available.
type PollingWatcher struct {
	root      string
	interval  time.Duration
	ignore    []string
	fileState map[string]fileSnapshot
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher reporting paths relative to root.
func NewPollingWatcher(root string, interval time.Duration, ignore []string) *PollingWatcher {
	return &PollingWatcher{
		root:      root,
		interval:  interval,
		ignore:    ignore,
		fileState: make(map[string]fileSnapshot),
		stopCh:    make(chan struct{}),
	}
}

// Run takes a baseline snapshot of dirs, then reports differences every
// interval until ctx is cancelled or Stop is called.
func (p *PollingWatcher) Run(ctx context.Context, dirs []string, notify NotifyFunc) error {
	p.mu.Lock()
	p.fileState = p.snapshot(dirs)
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			for _, ev := range p.Poll(dirs) {
				notify(ev)
			}
		}
	}
}

// Poll walks dirs once and returns the changes since the previous walk,
// sorted by path.
func (p *PollingWatcher) Poll(dirs []string) []FileEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.snapshot(dirs)
	now := time.Now()

	var events []FileEvent
	for path, snap := range current {
		prev, exists := p.fileState[path]
		switch {
		case !exists:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			events = append(events, FileEvent{Path: path, Operation: OpModify, IsDir: snap.isDir, Timestamp: now})
		}
	}
	for path, snap := range p.fileState {
		if _, exists := current[path]; !exists {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}
	p.fileState = current

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// snapshot records the state of every non-ignored entry under dirs.
func (p *PollingWatcher) snapshot(dirs []string) map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Skip entries we can't access
			}
			rel, err := filepath.Rel(p.root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if matchesAny(rel, p.ignore) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
			return nil
		})
	}
	return state
}

// Stop stops the polling loop. Safe to call repeatedly.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	return nil
}
