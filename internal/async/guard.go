package async

import "sync/atomic"

// IndexingGuard is the process-wide "a run is in flight" flag. Exactly one
// holder at a time; every successful acquire starts a new generation.
type IndexingGuard struct {
	active     atomic.Bool
	generation atomic.Uint64
}

// NewIndexingGuard creates a released guard.
func NewIndexingGuard() *IndexingGuard {
	return &IndexingGuard{}
}

// TryAcquire takes the guard if free and returns the new generation.
func (g *IndexingGuard) TryAcquire() (uint64, bool) {
	if !g.active.CompareAndSwap(false, true) {
		return 0, false
	}
	return g.generation.Add(1), true
}

// Release frees the guard if gen is still the current holder.
func (g *IndexingGuard) Release(gen uint64) {
	if g.generation.Load() == gen {
		g.active.Store(false)
	}
}

// Active reports whether a run holds the guard.
func (g *IndexingGuard) Active() bool {
	return g.active.Load()
}

// Generation returns the generation of the latest acquire.
func (g *IndexingGuard) Generation() uint64 {
	return g.generation.Load()
}
