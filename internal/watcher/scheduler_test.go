package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingRun struct {
	mu    sync.Mutex
	calls int
	err   error
	hook  func()
}

func (r *countingRun) Run(context.Context) error {
	r.mu.Lock()
	r.calls++
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.err
}

func (r *countingRun) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func fileEvent(path string) FileEvent {
	return FileEvent{Path: path, Operation: OpModify}
}

func TestScheduler_DebouncesBurstIntoOneRun(t *testing.T) {
	// Given: an idle scheduler with a 5s quiet period
	clock := newFakeClock()
	run := &countingRun{}
	s := NewScheduler(run.Run, WithClock(clock.Now))
	ctx := context.Background()

	// When: events arrive every second for four seconds
	for i := range 5 {
		require.True(t, s.Notify(fileEvent("awesome-x/cases/1/case.yml")))
		if i < 4 {
			clock.Advance(time.Second)
		}
		assert.False(t, s.Tick(ctx))
	}
	assert.Equal(t, StatePending, s.State())

	// Then: nothing runs until 5s after the last event
	clock.Advance(4 * time.Second)
	assert.False(t, s.Tick(ctx))
	assert.Equal(t, 0, run.Calls())

	clock.Advance(time.Second)
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, 1, run.Calls())
	assert.Equal(t, StateIdle, s.State())

	// And: no further run without new events
	clock.Advance(time.Minute)
	assert.False(t, s.Tick(ctx))
	assert.Equal(t, 1, run.Calls())
}

func TestScheduler_ReturnsToIdleAfterFailure(t *testing.T) {
	clock := newFakeClock()
	run := &countingRun{err: assert.AnError}
	s := NewScheduler(run.Run, WithClock(clock.Now))

	s.Notify(fileEvent("awesome-x/README.md"))
	clock.Advance(DefaultQuietPeriod)
	require.True(t, s.Tick(context.Background()))

	assert.Equal(t, StateIdle, s.State())
	stats := s.Stats()
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, assert.AnError.Error(), stats.LastError)
}

func TestScheduler_ReturnsToIdleAfterPanic(t *testing.T) {
	// Given: a run that panics
	clock := newFakeClock()
	s := NewScheduler(func(context.Context) error { panic("boom") }, WithClock(clock.Now))

	// When: the scheduler fires
	s.Notify(fileEvent("awesome-x/README.md"))
	clock.Advance(DefaultQuietPeriod)
	require.NotPanics(t, func() { s.Tick(context.Background()) })

	// Then: it is idle again and the failure is counted
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, s.Stats().Failures)
	assert.Contains(t, s.Stats().LastError, "boom")
}

func TestScheduler_EventDuringRunRearms(t *testing.T) {
	// Given: a run during which another change arrives
	clock := newFakeClock()
	run := &countingRun{}
	s := NewScheduler(run.Run, WithClock(clock.Now))
	run.hook = func() { s.Notify(fileEvent("awesome-x/cases/2/case.yml")) }

	s.Notify(fileEvent("awesome-x/cases/1/case.yml"))
	clock.Advance(DefaultQuietPeriod)
	require.True(t, s.Tick(context.Background()))

	// Then: the scheduler is pending again and runs once more after quiet
	assert.Equal(t, StatePending, s.State())
	run.hook = nil
	clock.Advance(DefaultQuietPeriod)
	require.True(t, s.Tick(context.Background()))
	assert.Equal(t, 2, run.Calls())
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_IgnoresNoiseAndDirectories(t *testing.T) {
	s := NewScheduler(func(context.Context) error { return nil },
		WithIgnore(".git", "node_modules", ".bananaindex"))

	tests := []struct {
		name string
		ev   FileEvent
		want bool
	}{
		{"case file", fileEvent("awesome-x/cases/1/case.yml"), true},
		{"vcs metadata", fileEvent("awesome-x/.git/index"), false},
		{"dependencies", fileEvent("awesome-x/node_modules/a.js"), false},
		{"data dir", fileEvent(".bananaindex/index.lock"), false},
		{"directory", FileEvent{Path: "awesome-x/cases/3", Operation: OpCreate, IsDir: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Notify(tt.ev))
		})
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := NewScheduler(func(context.Context) error { return nil }, WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RealClockRunsAfterQuietPeriod(t *testing.T) {
	run := &countingRun{}
	s := NewScheduler(run.Run,
		WithQuietPeriod(50*time.Millisecond),
		WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.Notify(fileEvent("awesome-x/README.md"))
	s.Notify(fileEvent("awesome-x/README_zh.md"))

	assert.Eventually(t, func() bool { return run.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)
}
