package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/search"
	"github.com/Aman-CERP/bananaindex/internal/ui"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixtureRoot lays out one submodule with one case and a README, configured
// for the embedded engine.
func fixtureRoot(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitmodules"), `[submodule "awesome-cats"]
	path = awesome-cats
	url = https://example.com/awesome-cats.git
`)
	writeFile(t, filepath.Join(root, "awesome-cats", "cases", "1", "case.yml"),
		"title: 猫\ntitle_en: Sleeping cat\nprompt: draw a sleeping cat\nauthor: mia\n")
	writeFile(t, filepath.Join(root, "awesome-cats", "README.md"), "# Awesome Cats\n\nCat prompts.\n")
	writeFile(t, filepath.Join(root, ".bananaindex.yaml"), "engine:\n  backend: bleve\n")
	return root
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	out, err := execute(t, "--help")

	// Then: every subcommand is listed
	require.NoError(t, err)
	for _, name := range []string{"index", "search", "case", "submodules", "suggest", "status", "doctor", "serve", "watch", "mcp", "version", "init"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_Version(t *testing.T) {
	// Given: a root command

	// When: executing with --version
	out, err := execute(t, "--version")

	// Then: the version template is used
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bananaindex version "))
}

func TestIndexThenQuery(t *testing.T) {
	// Given: an indexed fixture repository
	root := fixtureRoot(t)
	out, err := execute(t, "--root", root, "index", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 2 documents from 1 sources")

	// When: searching with JSON output
	out, err = execute(t, "--root", root, "search", "cat", "--json")

	// Then: the case is found
	require.NoError(t, err)
	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Hits)

	var caseID string
	for _, h := range resp.Hits {
		if h.Type == "case" {
			caseID = h.ID
		}
	}
	require.NotEmpty(t, caseID)

	// When: fetching the case
	out, err = execute(t, "--root", root, "case", caseID)

	// Then: the full document is printed
	require.NoError(t, err)
	assert.Contains(t, out, "draw a sleeping cat")

	// When: listing submodules
	out, err = execute(t, "--root", root, "submodules")

	// Then: the one source is listed
	require.NoError(t, err)
	assert.Equal(t, "awesome-cats", strings.TrimSpace(out))
}

func TestCaseCmd_NotFound(t *testing.T) {
	// Given: an indexed fixture repository
	root := fixtureRoot(t)
	_, err := execute(t, "--root", root, "index", "--plain")
	require.NoError(t, err)

	// When: fetching an unknown id
	_, err = execute(t, "--root", root, "case", "does-not-exist")

	// Then: it fails
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case not found")
}

func TestSearchCmd_PlainOutput(t *testing.T) {
	// Given: an indexed fixture repository
	root := fixtureRoot(t)
	_, err := execute(t, "--root", root, "index", "--plain")
	require.NoError(t, err)

	// When: searching for something absent
	out, err := execute(t, "--root", root, "search", "zebra")

	// Then: the no-results message is printed
	require.NoError(t, err)
	assert.Contains(t, out, `No results found for "zebra"`)
}

func TestSearchCmd_RejectsNegativeLimit(t *testing.T) {
	// Given: a fixture repository
	root := fixtureRoot(t)

	// When: searching with a negative limit
	_, err := execute(t, "--root", root, "search", "cat", "--limit", "-1")

	// Then: the input is rejected
	require.Error(t, err)
}

func TestStatusCmd_JSON(t *testing.T) {
	// Given: an indexed fixture repository
	root := fixtureRoot(t)
	_, err := execute(t, "--root", root, "index", "--plain")
	require.NoError(t, err)

	// When: asking for status as JSON
	out, err := execute(t, "--root", root, "status", "--json")

	// Then: the document count and submodule count are reported
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.True(t, info.Reachable)
	assert.Equal(t, "bleve", info.Engine)
	assert.Equal(t, int64(2), info.Documents)
	assert.Equal(t, 1, info.Submodules)
	assert.False(t, info.IsIndexing)
	assert.Positive(t, info.DataSize)
}

func TestIndexCmd_DeclinesWithoutSources(t *testing.T) {
	// Given: a root with a config but no .gitmodules
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".bananaindex.yaml"), "engine:\n  backend: bleve\n")

	// When: indexing
	out, err := execute(t, "--root", root, "index", "--plain")

	// Then: nothing is indexed and the run is not an error
	require.NoError(t, err)
	assert.Contains(t, out, "index left unchanged")
}

func TestIndexCmd_InvalidConfig(t *testing.T) {
	// Given: a config naming an unknown backend
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".bananaindex.yaml"), "engine:\n  backend: solr\n")

	// When: indexing
	_, err := execute(t, "--root", root, "index")

	// Then: the config error surfaces
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.backend")
}

func TestDoctorCmd_HealthyRoot(t *testing.T) {
	// Given: an indexed fixture repository
	root := fixtureRoot(t)
	_, err := execute(t, "--root", root, "index", "--plain")
	require.NoError(t, err)

	// When: running the checks
	out, err := execute(t, "--root", root, "doctor")

	// Then: no required check fails
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS] engine")
	assert.Contains(t, out, "[PASS] submodules: 1 submodules")
}

func TestDoctorCmd_MissingGitmodules(t *testing.T) {
	// Given: a root without .gitmodules
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".bananaindex.yaml"), "engine:\n  backend: bleve\n")

	// When: running the checks
	out, err := execute(t, "--root", root, "doctor")

	// Then: the command fails and names the file
	require.Error(t, err)
	assert.Contains(t, out, "[FAIL] submodules: .gitmodules not found")
}
