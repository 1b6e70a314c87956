package index

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/store"
)

// recordingEngine wraps the embedded engine, counts calls and can leave
// chosen tasks processing forever.
type recordingEngine struct {
	engine.Engine

	mu           sync.Mutex
	batchSizes   []int
	settingsRuns int
	stuck        map[int64]bool
	stuckBatches map[int]bool // batch number (zero-based) → never finishes
	healthErr    error
}

func newRecordingEngine(t *testing.T) *recordingEngine {
	t.Helper()
	mem := store.NewMemoryEngine()
	t.Cleanup(func() { _ = mem.Close() })
	return &recordingEngine{Engine: mem, stuck: map[int64]bool{}, stuckBatches: map[int]bool{}}
}

func (r *recordingEngine) Health(ctx context.Context) error {
	if r.healthErr != nil {
		return r.healthErr
	}
	return r.Engine.Health(ctx)
}

func (r *recordingEngine) UpdateSettings(ctx context.Context, uid string, s engine.Settings) (engine.TaskInfo, error) {
	r.mu.Lock()
	r.settingsRuns++
	r.mu.Unlock()
	return r.Engine.UpdateSettings(ctx, uid, s)
}

func (r *recordingEngine) AddDocuments(ctx context.Context, uid string, docs []document.Document, pk string) (engine.TaskInfo, error) {
	info, err := r.Engine.AddDocuments(ctx, uid, docs, pk)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stuckBatches[len(r.batchSizes)] {
		r.stuck[info.TaskUID] = true
	}
	r.batchSizes = append(r.batchSizes, len(docs))
	return info, err
}

func (r *recordingEngine) GetTask(ctx context.Context, uid int64) (engine.Task, error) {
	r.mu.Lock()
	stuck := r.stuck[uid]
	r.mu.Unlock()
	if stuck {
		return engine.Task{UID: uid, Status: engine.TaskProcessing}, nil
	}
	return r.Engine.GetTask(ctx, uid)
}

func makeDocs(n int) []document.Document {
	docs := make([]document.Document, n)
	for i := range docs {
		path := fmt.Sprintf("awesome-x/cases/%d", i+1)
		docs[i] = document.Document{
			ID:        document.NewID("awesome-x", document.TypeCase, path),
			Type:      document.TypeCase,
			Submodule: "awesome-x",
			Path:      path,
			TitleEn:   fmt.Sprintf("case %d", i+1),
			Language:  document.LanguageEn,
		}
	}
	return docs
}

func fastOptions() OrchestratorOptions {
	return OrchestratorOptions{
		IndexName:    "nano_banana_index",
		BatchSize:    DefaultBatchSize,
		TaskTimeout:  100 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Retry:        errors.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}
}

func TestSubmitDocuments_BatchesOfOneHundred(t *testing.T) {
	// Given: 250 documents
	eng := newRecordingEngine(t)
	o := NewOrchestrator(eng, fastOptions())
	ctx := context.Background()
	_, err := o.EnsureIndex(ctx, false)
	require.NoError(t, err)

	// When: submitting
	var reports []BatchReport
	res, err := o.SubmitDocuments(ctx, makeDocs(250), func(b BatchReport) { reports = append(reports, b) })

	// Then: three batches of 100, 100, 50
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, eng.batchSizes)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 3, res.Succeeded)
	require.Len(t, reports, 3)
	assert.Equal(t, 2, reports[2].Index)
	assert.Equal(t, 3, reports[2].Total)

	stats, err := eng.IndexStats(ctx, "nano_banana_index")
	require.NoError(t, err)
	assert.Equal(t, int64(250), stats.NumberOfDocuments)
}

func TestSubmitDocuments_TimeoutIsNotFatal(t *testing.T) {
	// Given: an engine whose second batch never finishes
	eng := newRecordingEngine(t)
	eng.stuckBatches[1] = true
	o := NewOrchestrator(eng, fastOptions())
	ctx := context.Background()
	_, err := o.EnsureIndex(ctx, false)
	require.NoError(t, err)

	// When: submitting three batches
	res, err := o.SubmitDocuments(ctx, makeDocs(250), nil)

	// Then: the timeout is counted and the third batch still goes out
	require.NoError(t, err)
	assert.Len(t, eng.batchSizes, 3)
	assert.Equal(t, 1, res.TimedOut)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Failed)
}

func TestSubmitDocuments_Empty(t *testing.T) {
	// Given: nothing to submit
	eng := newRecordingEngine(t)
	o := NewOrchestrator(eng, fastOptions())

	// When: submitting
	res, err := o.SubmitDocuments(context.Background(), nil, nil)

	// Then: no batches
	require.NoError(t, err)
	assert.Zero(t, res.Batches)
	assert.Empty(t, eng.batchSizes)
}

func TestEnsureIndex_CreatesAndConfigures(t *testing.T) {
	// Given: an engine without the index
	eng := newRecordingEngine(t)
	o := NewOrchestrator(eng, fastOptions())

	// When: ensuring
	res, err := o.EnsureIndex(context.Background(), false)

	// Then: created and configured once
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.SettingsApplied)
	assert.Equal(t, 1, eng.settingsRuns)
}

func TestEnsureIndex_SkipsSettingsWhenPopulated(t *testing.T) {
	// Given: an index holding documents
	eng := newRecordingEngine(t)
	o := NewOrchestrator(eng, fastOptions())
	ctx := context.Background()
	_, err := o.EnsureIndex(ctx, false)
	require.NoError(t, err)
	_, err = o.SubmitDocuments(ctx, makeDocs(3), nil)
	require.NoError(t, err)

	// When: ensuring again
	res, err := o.EnsureIndex(ctx, false)

	// Then: no reconfiguration
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.SettingsApplied)
	assert.Equal(t, int64(3), res.Documents)
	assert.Equal(t, 1, eng.settingsRuns)
}

func TestEnsureIndex_ForceReappliesSettings(t *testing.T) {
	// Given: a populated index
	eng := newRecordingEngine(t)
	o := NewOrchestrator(eng, fastOptions())
	ctx := context.Background()
	_, err := o.EnsureIndex(ctx, false)
	require.NoError(t, err)
	_, err = o.SubmitDocuments(ctx, makeDocs(1), nil)
	require.NoError(t, err)

	// When: ensuring with force
	res, err := o.EnsureIndex(ctx, true)

	// Then: settings applied again
	require.NoError(t, err)
	assert.True(t, res.SettingsApplied)
	assert.Equal(t, 2, eng.settingsRuns)
}

func TestEnsureIndex_EmptyExistingIndexIsConfigured(t *testing.T) {
	// Given: an index that exists but holds no documents
	eng := newRecordingEngine(t)
	ctx := context.Background()
	_, err := eng.CreateIndex(ctx, "nano_banana_index", PrimaryKey)
	require.NoError(t, err)
	o := NewOrchestrator(eng, fastOptions())

	// When: ensuring
	res, err := o.EnsureIndex(ctx, false)

	// Then: not recreated, but configured
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.SettingsApplied)
}

func TestConnect_Unreachable(t *testing.T) {
	// Given: an engine that cannot be reached
	eng := newRecordingEngine(t)
	eng.healthErr = engine.ErrUnreachable
	o := NewOrchestrator(eng, fastOptions())

	// When: connecting
	err := o.Connect(context.Background())

	// Then: a connection failure surfaces
	require.Error(t, err)
	assert.Equal(t, errors.KindConnectionFailure, errors.KindOf(err))
}

func TestConnect_Healthy(t *testing.T) {
	eng := newRecordingEngine(t)
	o := NewOrchestrator(eng, fastOptions())
	assert.NoError(t, o.Connect(context.Background()))
}
