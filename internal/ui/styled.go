package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

// StyledRenderer prints colored, line-oriented progress for terminals.
// Submission progress redraws a single bar line in place.
type StyledRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	styles   Styles
	root     string
	stage    Stage
	started  time.Time
	inBar    bool
	warnings int
}

// NewStyledRenderer creates a styled renderer.
func NewStyledRenderer(cfg Config) *StyledRenderer {
	return &StyledRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor),
		root:   cfg.RootDir,
		stage:  -1,
	}
}

// Start implements Renderer.
func (r *StyledRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = time.Now()
	header := "bananaindex"
	if r.root != "" {
		header += " " + r.styles.Label.Render(r.root)
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Header.Render(header))
	return nil
}

// UpdateProgress implements Renderer.
func (r *StyledRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.stage {
		r.endBar()
		r.stage = event.Stage
		_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Active.Render("●"), r.styles.Stage.Render(event.Stage.String()))
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "\r  %s %s", r.renderBar(event.Current, event.Total),
			r.styles.Label.Render(fmt.Sprintf("%d/%d", event.Current, event.Total)))
		r.inBar = true
		if event.Current >= event.Total {
			r.endBar()
		}
		return
	}

	msg := event.Message
	if msg == "" {
		msg = event.Item
	}
	if msg != "" {
		r.endBar()
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Dim.Render(msg))
	}
}

// AddError implements Renderer.
func (r *StyledRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endBar()
	style, label := r.styles.Error, "error"
	if event.IsWarn {
		style, label = r.styles.Warning, "warn"
		r.warnings++
	}
	line := fmt.Sprintf("%v", event.Err)
	if event.Item != "" {
		line = event.Item + ": " + line
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", style.Render(label), line)
}

// Complete implements Renderer.
func (r *StyledRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endBar()
	rows := []string{
		r.styles.Success.Render(fmt.Sprintf("Indexed %d documents from %d sources", stats.Documents, stats.Sources)),
		r.styles.Label.Render(fmt.Sprintf("%s in %s", stats.Engine, formatDuration(stats.Duration))),
	}
	if stats.TimedOut > 0 {
		rows = append(rows, r.styles.Warning.Render(
			fmt.Sprintf("%d of %d batches still processing", stats.TimedOut, stats.Batches)))
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		rows = append(rows, r.styles.Warning.Render(
			fmt.Sprintf("%d errors, %d warnings", stats.Errors, stats.Warnings)))
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

// Stop implements Renderer.
func (r *StyledRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endBar()
	return nil
}

func (r *StyledRenderer) endBar() {
	if r.inBar {
		_, _ = fmt.Fprintln(r.out)
		r.inBar = false
	}
}

func (r *StyledRenderer) renderBar(current, total int) string {
	if current > total {
		current = total
	}
	filled := barWidth * current / total
	return r.styles.Progress.Render(strings.Repeat("█", filled)) +
		r.styles.Dim.Render(strings.Repeat("░", barWidth-filled))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
