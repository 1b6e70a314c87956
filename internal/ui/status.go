package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the index as seen by the status command.
type StatusInfo struct {
	Root      string `json:"root"`
	Engine    string `json:"engine"`
	Endpoint  string `json:"endpoint"`
	IndexName string `json:"index_name"`
	Reachable bool   `json:"reachable"`

	Documents  int64 `json:"documents"`
	IsIndexing bool  `json:"is_indexing"`
	Progress   int   `json:"progress"`
	ETASeconds *int  `json:"eta_seconds,omitempty"`

	Submodules int `json:"submodules"`

	// DataSize is the on-disk size of an embedded index, 0 for remote engines.
	DataSize    int64     `json:"data_size,omitempty"`
	LastIndexed time.Time `json:"last_indexed,omitzero"`

	WatcherStatus string `json:"watcher_status,omitempty"` // "running", "stopped"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.IndexName))

	engine := "unreachable"
	if info.Reachable {
		engine = "ready"
	}
	_, _ = fmt.Fprintf(r.out, "  Engine:     %s (%s)\n", info.Engine, r.renderStatus(engine))
	if info.Endpoint != "" {
		_, _ = fmt.Fprintf(r.out, "  Endpoint:   %s\n", info.Endpoint)
	}
	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Submodules: %d\n", info.Submodules)
	if info.DataSize > 0 {
		_, _ = fmt.Fprintf(r.out, "  Size:       %s\n", FormatBytes(info.DataSize))
	}
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last run:   %s\n", formatTime(info.LastIndexed))
	}

	if info.IsIndexing {
		line := fmt.Sprintf("%d%%", info.Progress)
		if info.ETASeconds != nil {
			line += fmt.Sprintf(", about %ds left", *info.ETASeconds)
		}
		_, _ = fmt.Fprintf(r.out, "  Indexing:   %s\n", r.renderStatus("running")+" "+line)
	}

	if info.WatcherStatus != "" {
		_, _ = fmt.Fprintf(r.out, "  Watcher:    %s\n", r.renderStatus(info.WatcherStatus))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "stopped":
		return r.styles.Warning.Render(status)
	case "unreachable", "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
