package index

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/ui"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// sampleRoot lays out one submodule with one case and a README.
func sampleRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write(t, filepath.Join(root, ".gitmodules"), `[submodule "awesome-x"]
	path = awesome-x
	url = https://example.com/awesome-x.git
[submodule "awesome-gone"]
	path = awesome-gone
`)
	write(t, filepath.Join(root, "awesome-x", "cases", "1", "case.yml"),
		"title: 标题\ntitle_en: Hi\nprompt: draw a cat\n")
	write(t, filepath.Join(root, "awesome-x", "README.md"), "# Awesome X\n\nPrompts.\n")
	return root
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Engine.Backend = config.BackendBleve
	cfg.Index.TaskTimeout = "1s"
	return cfg
}

func TestPipelineRun_IndexesDocuments(t *testing.T) {
	// Given: a root with one live source and one missing source
	root := sampleRoot(t)
	eng := newRecordingEngine(t)
	buf := &bytes.Buffer{}
	var hooked *RunResult
	p := NewPipeline(root, testConfig(), eng,
		WithRenderer(ui.NewPlainRenderer(ui.NewConfig(buf))),
		WithAfterRun(func(r *RunResult) { hooked = r }))

	// When: running
	res, err := p.Run(context.Background(), RunOptions{})

	// Then: both documents land in the index
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Sources)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Documents)
	assert.True(t, res.Ensure.Created)
	assert.Equal(t, 1, res.Submit.Batches)
	assert.Same(t, res, hooked)

	stats, err := eng.IndexStats(context.Background(), "nano_banana_index")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.NumberOfDocuments)
	assert.Contains(t, buf.String(), "Complete: 2 documents from 1 sources")
}

func TestPipelineRun_Idempotent(t *testing.T) {
	// Given: a pipeline over unchanged sources
	root := sampleRoot(t)
	eng := newRecordingEngine(t)
	p := NewPipeline(root, testConfig(), eng)
	ctx := context.Background()

	// When: running twice
	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	second, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// Then: the id set is unchanged and settings were applied once
	stats, err := eng.IndexStats(ctx, "nano_banana_index")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.NumberOfDocuments)
	assert.False(t, second.Ensure.SettingsApplied)
	assert.Equal(t, 1, eng.settingsRuns)
}

func TestPipelineRun_EmptyIsDeclined(t *testing.T) {
	// Given: a root without any descriptors
	root := t.TempDir()
	eng := newRecordingEngine(t)
	p := NewPipeline(root, testConfig(), eng)

	// When: running
	res, err := p.Run(context.Background(), RunOptions{})

	// Then: nothing touches the engine
	require.NoError(t, err)
	assert.True(t, res.Declined)
	_, err = eng.IndexStats(context.Background(), "nano_banana_index")
	assert.Equal(t, errors.ErrCodeIndexNotFound, errors.GetCode(err))
}

func TestPipelineRun_UnreachableEngine(t *testing.T) {
	// Given: an engine that is down
	root := sampleRoot(t)
	eng := newRecordingEngine(t)
	eng.healthErr = engine.ErrUnreachable
	cfg := testConfig()
	p := NewPipeline(root, cfg, eng)
	p.orch = NewOrchestrator(eng, fastOptions())

	// When: running
	_, err := p.Run(context.Background(), RunOptions{})

	// Then: the run fails as a connection failure
	require.Error(t, err)
	assert.Equal(t, errors.KindConnectionFailure, errors.KindOf(err))
}

func TestPipelineRun_LockHeld(t *testing.T) {
	// Given: another holder of the data dir lock
	root := sampleRoot(t)
	cfg := testConfig()
	held := NewFileLock(cfg.DataPath(root))
	require.NoError(t, held.TryLock())
	t.Cleanup(func() { _ = held.Unlock() })
	p := NewPipeline(root, cfg, newRecordingEngine(t))

	// When: running
	_, err := p.Run(context.Background(), RunOptions{})

	// Then: the run refuses to start
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLockHeld, errors.GetCode(err))
}

func TestFileLock_UnlockIsIdempotent(t *testing.T) {
	// Given: a lock that was taken and released
	l := NewFileLock(t.TempDir())
	require.NoError(t, l.TryLock())
	require.NoError(t, l.Unlock())

	// When/Then: releasing again is fine and the lock can be retaken
	assert.NoError(t, l.Unlock())
	assert.NoError(t, l.TryLock())
	assert.NoError(t, l.Unlock())
	assert.Equal(t, LockFileName, filepath.Base(l.Path()))
}
