package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: reporting batch progress
	r.UpdateProgress(ProgressEvent{
		Stage:   StageSubmitting,
		Current: 2,
		Total:   5,
		Item:    "batch 2",
	})

	// Then: output is tagged and counted
	assert.Equal(t, "[SUBMIT] 2/5 - batch 2\n", buf.String())
}

func TestPlainRenderer_MessageOnly(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: reporting a message without totals, and an empty event
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "Reading .gitmodules"})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning})

	// Then: only the message line is printed
	assert.Equal(t, "[SCAN] Reading .gitmodules\n", buf.String())
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering through all stages and a completion
	for _, stage := range []Stage{StageScanning, StageNormalizing, StageConnecting, StageSubmitting} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 1, Total: 2, Message: "working"})
	}
	r.Complete(CompletionStats{Documents: 3, Sources: 1, Engine: "bleve", Index: "i", RunID: "r"})

	// Then: output contains no escape codes
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPlainRenderer_AddError(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: adding a warning with an item and an error without one
	r.AddError(ErrorEvent{Item: "awesome-x/cases/2", Err: errors.New("bad yaml"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("engine down")})

	// Then: both are prefixed by severity
	assert.Contains(t, buf.String(), "WARN: awesome-x/cases/2: bad yaml\n")
	assert.Contains(t, buf.String(), "ERROR: engine down\n")
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))

	// When: completing with a timed-out batch
	r.Complete(CompletionStats{
		Documents: 250,
		Sources:   2,
		Batches:   3,
		TimedOut:  1,
		Duration:  1500 * time.Millisecond,
		Warnings:  1,
		Stages:    StageTimings{Scan: time.Millisecond, Submit: time.Second},
		Engine:    "meilisearch",
		Index:     "nano_banana_index",
		RunID:     "abc",
	})

	// Then: the summary covers documents, batches and stages
	out := buf.String()
	assert.Contains(t, out, "Complete: 250 documents from 2 sources in 1.5s (0 errors, 1 warnings)")
	assert.Contains(t, out, "Batches: 3 submitted, 1 still processing")
	assert.Contains(t, out, "Stage Breakdown:")
	assert.Contains(t, out, "Engine: meilisearch (index nano_banana_index, run abc)")
	require.NoError(t, r.Stop())
}

func TestStyledRenderer_NoColorOutput(t *testing.T) {
	// Given: a styled renderer without color
	buf := &bytes.Buffer{}
	r := NewStyledRenderer(NewConfig(buf, WithNoColor(true), WithRootDir("/repo")))
	require.NoError(t, r.Start(context.Background()))

	// When: running through a stage with a bar and finishing
	r.UpdateProgress(ProgressEvent{Stage: StageSubmitting, Current: 1, Total: 2})
	r.UpdateProgress(ProgressEvent{Stage: StageSubmitting, Current: 2, Total: 2})
	r.AddError(ErrorEvent{Err: errors.New("slow"), IsWarn: true})
	r.Complete(CompletionStats{Documents: 2, Sources: 1, Engine: "bleve"})
	require.NoError(t, r.Stop())

	// Then: the header, stage name, final count and summary appear
	out := buf.String()
	assert.Contains(t, out, "bananaindex /repo")
	assert.Contains(t, out, "Submitting")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "warn slow")
	assert.Contains(t, out, "Indexed 2 documents from 1 sources")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "1m05s", formatDuration(65*time.Second))
}
