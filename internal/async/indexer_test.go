package async

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

func TestTrigger_StartsRun(t *testing.T) {
	// Given: an absent index
	eng := newTaskEngine(t)
	var runs atomic.Int32
	b := NewBackgroundIndexer(NewIndexingGuard(), eng, testIndex, func(ctx context.Context, force bool, p *RunProgress) error {
		runs.Add(1)
		p.BatchDone(1, 1)
		return nil
	})

	// When: indexing is triggered
	res, err := b.Trigger(context.Background(), false)
	require.NoError(t, err)

	// Then: a run starts and completes
	assert.Equal(t, TriggerStarted, res.Status)
	assert.Equal(t, "Indexing started", res.Message)
	require.NoError(t, b.Wait())
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, b.Running())
	assert.Equal(t, RunStageDone, b.Progress().Snapshot().Stage)
}

func TestTrigger_WhileRunning(t *testing.T) {
	// Given: a run blocked until released
	eng := newTaskEngine(t)
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	b := NewBackgroundIndexer(NewIndexingGuard(), eng, testIndex, func(ctx context.Context, force bool, p *RunProgress) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})
	_, err := b.Trigger(context.Background(), false)
	require.NoError(t, err)
	<-started

	// When: a second trigger arrives
	res, err := b.Trigger(context.Background(), true)

	// Then: it reports running and no second run starts
	require.NoError(t, err)
	assert.Equal(t, TriggerRunning, res.Status)
	assert.Equal(t, "Indexing already in progress", res.Message)

	close(release)
	require.NoError(t, b.Wait())
	assert.Equal(t, int32(1), runs.Load())
}

func TestTrigger_IndexAlreadyExists(t *testing.T) {
	// Given: an index with documents
	eng := newTaskEngine(t)
	seed(t, eng, 2)
	b := NewBackgroundIndexer(NewIndexingGuard(), eng, testIndex, func(context.Context, bool, *RunProgress) error {
		t.Fatal("run must not start")
		return nil
	})

	// When: triggered without force
	res, err := b.Trigger(context.Background(), false)

	// Then: nothing runs
	require.NoError(t, err)
	assert.Equal(t, TriggerComplete, res.Status)
	assert.Contains(t, res.Message, "Index already exists")
	assert.False(t, b.Running())
}

func TestTrigger_ForceRebuildsExisting(t *testing.T) {
	eng := newTaskEngine(t)
	seed(t, eng, 2)
	var forced atomic.Bool
	b := NewBackgroundIndexer(NewIndexingGuard(), eng, testIndex, func(_ context.Context, force bool, _ *RunProgress) error {
		forced.Store(force)
		return nil
	})

	res, err := b.Trigger(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, TriggerStarted, res.Status)
	require.NoError(t, b.Wait())
	assert.True(t, forced.Load())
}

func TestTriggerWith_SkipCheckWithoutRebuild(t *testing.T) {
	// Given: an index with documents
	eng := newTaskEngine(t)
	seed(t, eng, 2)
	var runs atomic.Int32
	var rebuilt atomic.Bool
	b := NewBackgroundIndexer(NewIndexingGuard(), eng, testIndex, func(_ context.Context, rebuild bool, _ *RunProgress) error {
		runs.Add(1)
		rebuilt.Store(rebuild)
		return nil
	})

	// When: triggered past the populated check without a rebuild
	res, err := b.TriggerWith(context.Background(), TriggerOptions{SkipPopulatedCheck: true})
	require.NoError(t, err)
	require.NoError(t, b.Wait())

	// Then: a run happens and settings are not rebuilt
	assert.Equal(t, TriggerStarted, res.Status)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, rebuilt.Load())
}

func TestTrigger_EngineUnreachable(t *testing.T) {
	eng := newTaskEngine(t)
	eng.healthErr = engine.ErrUnreachable
	b := NewBackgroundIndexer(NewIndexingGuard(), eng, testIndex, func(context.Context, bool, *RunProgress) error { return nil })

	_, err := b.Trigger(context.Background(), false)

	require.Error(t, err)
	assert.Equal(t, errors.KindConnectionFailure, errors.KindOf(err))
}

func TestTrigger_RunFailureReleasesGuard(t *testing.T) {
	// Given: a run that panics
	eng := newTaskEngine(t)
	guard := NewIndexingGuard()
	b := NewBackgroundIndexer(guard, eng, testIndex, func(context.Context, bool, *RunProgress) error {
		panic("boom")
	})

	// When: it is triggered and finishes
	_, err := b.Trigger(context.Background(), false)
	require.NoError(t, err)
	runErr := b.Wait()

	// Then: the failure is recorded and the guard is free again
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "boom")
	assert.False(t, guard.Active())
	assert.Equal(t, RunStageFailed, b.Progress().Snapshot().Stage)
	assert.Equal(t, runErr, b.LastError())
}

func TestWait_NoRun(t *testing.T) {
	b := NewBackgroundIndexer(NewIndexingGuard(), newTaskEngine(t), testIndex, nil)
	assert.NoError(t, b.Wait())
}
