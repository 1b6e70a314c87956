package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/async"
	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/engine/meilisearch"
	"github.com/Aman-CERP/bananaindex/internal/search"
	"github.com/Aman-CERP/bananaindex/internal/store"
)

func TestOpenEngine_SelectsBackend(t *testing.T) {
	// Given: one config per backend
	root := t.TempDir()
	bleveCfg := config.NewConfig()
	bleveCfg.Engine.Backend = config.BackendBleve
	meiliCfg := config.NewConfig()

	// When: opening each
	bleveEng, err := openEngine(root, bleveCfg)
	require.NoError(t, err)
	defer func() { _ = bleveEng.Close() }()
	meiliEng, err := openEngine(root, meiliCfg)
	require.NoError(t, err)
	defer func() { _ = meiliEng.Close() }()

	// Then: the matching adapter is returned
	assert.IsType(t, &store.BleveEngine{}, bleveEng)
	assert.IsType(t, &meilisearch.Client{}, meiliEng)
}

func TestOpenEngine_InvalidURL(t *testing.T) {
	// Given: a meilisearch config without a usable URL
	cfg := config.NewConfig()
	cfg.Engine.URL = "not a url"

	// When: opening the engine
	_, err := openEngine(t.TempDir(), cfg)

	// Then: it fails before any request
	require.Error(t, err)
}

func TestApp_TriggerIndexesAndInvalidatesCache(t *testing.T) {
	// Given: an app over the fixture repository and an empty engine
	root := fixtureRoot(t)
	cfg := config.NewConfig()
	cfg.Engine.Backend = config.BackendBleve
	cfg.Index.TaskTimeout = "1s"
	eng := store.NewMemoryEngine()
	a := newApp(context.Background(), root, cfg, eng)
	defer a.Close()
	ctx := context.Background()

	// And: an empty index with a suggestion lookup cached against it
	_, err := eng.CreateIndex(ctx, cfg.Engine.IndexName, "id")
	require.NoError(t, err)
	require.Empty(t, a.search.GetSuggestions(ctx, "Sleep", 5))

	// When: triggering a background run and waiting for it
	res, err := a.indexer.Trigger(ctx, false)
	require.NoError(t, err)
	require.Equal(t, async.TriggerStarted, res.Status)
	require.NoError(t, a.indexer.Wait())

	// Then: the index is complete and progress reports it
	p := a.tracker.Progress(ctx)
	assert.Equal(t, async.StateIndexed, p.State)
	assert.Equal(t, int64(2), p.DocumentCount)
	assert.Equal(t, async.RunStageDone, a.progress.Snapshot().Stage)

	// And: the stale cached suggestion was dropped
	assert.NotEmpty(t, a.search.GetSuggestions(ctx, "Sleep", 5))

	// And: a second trigger reports the existing index
	res, err = a.indexer.Trigger(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, async.TriggerComplete, res.Status)

	hits := a.search.Search(ctx, search.Request{Query: "cat"})
	assert.NotEmpty(t, hits.Hits)
}

func TestApp_ReindexWaitsForRun(t *testing.T) {
	// Given: an app over the fixture repository
	root := fixtureRoot(t)
	cfg := config.NewConfig()
	cfg.Engine.Backend = config.BackendBleve
	cfg.Index.TaskTimeout = "1s"
	a := newApp(context.Background(), root, cfg, store.NewMemoryEngine())
	defer a.Close()

	// When: the watcher path reindexes
	err := a.reindex(context.Background())

	// Then: documents are present as soon as it returns
	require.NoError(t, err)
	assert.True(t, a.search.IsIndexed(context.Background()))
}

// settingsCounter counts settings updates sent to the wrapped engine.
type settingsCounter struct {
	engine.Engine
	calls atomic.Int32
}

func (e *settingsCounter) UpdateSettings(ctx context.Context, uid string, s engine.Settings) (engine.TaskInfo, error) {
	e.calls.Add(1)
	return e.Engine.UpdateSettings(ctx, uid, s)
}

func TestApp_ReindexKeepsSettingsOfPopulatedIndex(t *testing.T) {
	// Given: an app whose index was populated by a first run
	root := fixtureRoot(t)
	cfg := config.NewConfig()
	cfg.Engine.Backend = config.BackendBleve
	cfg.Index.TaskTimeout = "1s"
	eng := &settingsCounter{Engine: store.NewMemoryEngine()}
	a := newApp(context.Background(), root, cfg, eng)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.reindex(ctx))
	require.True(t, a.search.IsIndexed(ctx))
	initial := eng.calls.Load()
	assert.Equal(t, int32(1), initial)

	// When: the watcher path reindexes twice more
	require.NoError(t, a.reindex(ctx))
	require.NoError(t, a.reindex(ctx))

	// Then: no further settings updates were sent
	assert.Equal(t, initial, eng.calls.Load())

	// And: a forced trigger still rebuilds settings
	res, err := a.indexer.Trigger(ctx, true)
	require.NoError(t, err)
	require.Equal(t, async.TriggerStarted, res.Status)
	require.NoError(t, a.indexer.Wait())
	assert.Equal(t, initial+1, eng.calls.Load())
}

func TestApp_DrainIndexerLogsRunFailure(t *testing.T) {
	// Given: an app whose background run fails
	cfg := config.NewConfig()
	cfg.Engine.Backend = config.BackendBleve
	a := newApp(context.Background(), fixtureRoot(t), cfg, store.NewMemoryEngine())
	defer a.Close()
	a.indexer = async.NewBackgroundIndexer(a.guard, a.eng, cfg.Engine.IndexName,
		func(context.Context, bool, *async.RunProgress) error {
			return fmt.Errorf("disk went away")
		})

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	res, err := a.indexer.Trigger(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, async.TriggerStarted, res.Status)

	// When: shutting down waits for the run
	a.drainIndexer()

	// Then: the failure is logged rather than dropped
	assert.Contains(t, buf.String(), "background_index_failed_on_shutdown")
	assert.Contains(t, buf.String(), "disk went away")
	assert.False(t, a.guard.Active())
}
