package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// SchedulerState is the debounce state.
type SchedulerState string

const (
	StateIdle    SchedulerState = "idle"
	StatePending SchedulerState = "pending"
	StateRunning SchedulerState = "running"
)

const (
	DefaultQuietPeriod  = 5 * time.Second
	DefaultPollInterval = time.Second
)

// RunFunc runs one full indexing pipeline.
type RunFunc func(ctx context.Context) error

// SchedulerStats summarises scheduler activity.
type SchedulerStats struct {
	State     SchedulerState `json:"state"`
	Runs      int            `json:"runs"`
	Failures  int            `json:"failures"`
	LastRun   time.Time      `json:"last_run,omitzero"`
	LastError string         `json:"last_error,omitempty"`
}

// Scheduler debounces change events into pipeline runs. The first event
// moves it from idle to pending; later events only push the deadline out.
// Once the quiet period has passed since the last event the pipeline runs
// synchronously on the poll loop, after which the scheduler is idle again
// whatever the outcome.
type Scheduler struct {
	run          RunFunc
	quietPeriod  time.Duration
	pollInterval time.Duration
	ignore       []string
	now          func() time.Time

	mu         sync.Mutex
	state      SchedulerState
	lastChange time.Time
	dirty      bool // event seen while running
	stats      SchedulerStats
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithQuietPeriod sets how long events must stop before a run.
func WithQuietPeriod(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.quietPeriod = d
		}
	}
}

// WithPollInterval sets how often the pending state is checked.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithIgnore adds substrings whose paths never trigger a run.
func WithIgnore(substrings ...string) SchedulerOption {
	return func(s *Scheduler) {
		s.ignore = append(s.ignore, substrings...)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates an idle scheduler.
func NewScheduler(run RunFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		run:          run,
		quietPeriod:  DefaultQuietPeriod,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldIgnore reports whether path matches the ignore set.
func (s *Scheduler) ShouldIgnore(path string) bool {
	return matchesAny(path, s.ignore)
}

// Notify records a file event. Directory events and ignored paths are
// dropped. It reports whether the event was accepted.
func (s *Scheduler) Notify(ev FileEvent) bool {
	if ev.IsDir || s.ShouldIgnore(ev.Path) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	switch s.state {
	case StateIdle:
		s.state = StatePending
		slog.Debug("reindex_pending", slog.String("path", ev.Path), slog.String("op", ev.Operation.String()))
	case StateRunning:
		s.dirty = true
	}
	s.lastChange = now
	return true
}

// State returns the current state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.state
	return st
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the pipeline if the quiet period has elapsed since the last
// event. It reports whether a run happened.
func (s *Scheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StatePending || s.now().Sub(s.lastChange) < s.quietPeriod {
		s.mu.Unlock()
		return false
	}
	s.state = StateRunning
	s.dirty = false
	waited := s.now().Sub(s.lastChange)
	s.mu.Unlock()

	slog.Info("reindex_started", slog.Duration("quiet_for", waited))
	start := s.now()
	err := s.safeRun(ctx)
	elapsed := s.now().Sub(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Runs++
	s.stats.LastRun = start
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
		attrs := append(errors.LogAttrs(err),
			slog.Int("run", s.stats.Runs),
			slog.Int("failures", s.stats.Failures),
			slog.Duration("elapsed", elapsed),
			slog.String("chain", errorChain(err)))
		slog.Error("reindex_failed", attrs...)
	} else {
		s.stats.LastError = ""
		slog.Info("reindex_complete", slog.Int("run", s.stats.Runs), slog.Duration("elapsed", elapsed))
	}

	s.state = StateIdle
	if s.dirty {
		// Changes landed while the run was reading sources.
		s.state = StatePending
		s.dirty = false
	}
	return true
}

// safeRun converts a panicking run into an error so the scheduler can
// always return to idle.
func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(fmt.Sprintf("reindex panicked: %v", r), nil)
		}
	}()
	return s.run(ctx)
}

// errorChain lists the type of every error in the chain, outermost first.
func errorChain(err error) string {
	var chain string
	for e := err; e != nil; e = unwrap(e) {
		if chain != "" {
			chain += " <- "
		}
		chain += fmt.Sprintf("%T", e)
	}
	return chain
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}
