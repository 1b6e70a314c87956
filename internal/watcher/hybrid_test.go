package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/config"
)

type eventSink struct {
	mu     sync.Mutex
	events []FileEvent
}

func (s *eventSink) Notify(ev FileEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Path == path {
			return true
		}
	}
	return false
}

func TestHybridWatcher_ReportsNestedFiles(t *testing.T) {
	// Given: a watched source dir
	root := t.TempDir()
	dir := filepath.Join(root, "awesome-x")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cases"), 0o755))

	w := NewHybridWatcher(root, DefaultOptions())
	defer func() { _ = w.Stop() }()
	sink := &eventSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, []string{dir}, sink.Notify) }()
	require.Eventually(t, func() bool { return w.WatcherType() == "polling" || w.WatchedDirs() >= 2 },
		2*time.Second, 10*time.Millisecond)

	// When: a new case directory and file appear
	caseDir := filepath.Join(dir, "cases", "1")
	require.NoError(t, os.MkdirAll(caseDir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(caseDir, "case.yml"), []byte("title: x"), 0o644))

	// Then: the file event arrives with a root-relative path
	if w.WatcherType() == "fsnotify" {
		assert.Eventually(t, func() bool { return sink.Has("awesome-x/cases/1/case.yml") },
			3*time.Second, 20*time.Millisecond)
	}
}

func TestHybridWatcher_ForcePolling(t *testing.T) {
	w := NewHybridWatcher(t.TempDir(), Options{ForcePolling: true})
	assert.Equal(t, "polling", w.WatcherType())
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestHybridWatcher_StopEndsRun(t *testing.T) {
	root := t.TempDir()
	w := NewHybridWatcher(root, DefaultOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), []string{root}, func(FileEvent) {}) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_NoSourceDirs(t *testing.T) {
	// Given: a root without matching directories
	root := t.TempDir()
	cfg := config.NewConfig()

	// When: watching starts
	err := Watch(context.Background(), root, cfg, func(context.Context) error {
		t.Fatal("run must not be called")
		return nil
	})

	// Then: it returns immediately without error
	assert.NoError(t, err)
}

func TestNewService_IgnoresDataDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "awesome-x"), 0o755))
	cfg := config.NewConfig()

	svc := NewService(root, cfg, func(context.Context) error { return nil })

	require.NotNil(t, svc)
	assert.Equal(t, []string{filepath.Join(root, "awesome-x")}, svc.Dirs)
	assert.True(t, svc.Scheduler.ShouldIgnore(".bananaindex/index.lock"))
	assert.True(t, svc.Scheduler.ShouldIgnore("awesome-x/.DS_Store"))
	_ = svc.Watcher.Stop()
}
