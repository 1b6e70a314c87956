package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/search"
)

const summaryPromptRunes = 200

// FormatSearchResults formats a result page as markdown.
func FormatSearchResults(query string, resp search.Response) string {
	if len(resp.Hits) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Showing %d of %d result", len(resp.Hits), resp.Total)
	if resp.Total != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, d := range resp.Hits {
		formatHit(&sb, resp.Offset+i+1, d)
	}
	return sb.String()
}

// formatHit formats a single hit.
func formatHit(sb *strings.Builder, num int, d document.Document) {
	fmt.Fprintf(sb, "### %d. %s\n", num, displayTitle(d))
	fmt.Fprintf(sb, "`%s` · %s · %s · id `%s`\n\n", d.Submodule, d.Type, d.Language, d.ID)
	if d.Author != "" {
		fmt.Fprintf(sb, "**Author:** %s\n\n", d.Author)
	}
	if p := truncate(firstNonEmpty(d.PromptEn, d.Prompt), summaryPromptRunes); p != "" {
		fmt.Fprintf(sb, "> %s\n\n", strings.ReplaceAll(p, "\n", "\n> "))
	}
}

// FormatCase formats one document in full as markdown.
func FormatCase(d document.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", displayTitle(d))
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "**%s:** %s\n\n", label, value)
		}
	}
	field("Source", d.Submodule)
	field("Path", d.Path)
	field("Title (zh)", d.Title)
	field("Title (en)", d.TitleEn)
	field("Author", d.Author)
	field("Author link", d.AuthorLink)
	field("Image", d.Image)
	field("Capability", strings.TrimSpace(d.CapabilityCode+" "+d.CapabilityType))
	if d.Prompt != "" {
		fmt.Fprintf(&sb, "### Prompt\n\n```\n%s\n```\n\n", d.Prompt)
	}
	if d.PromptEn != "" && d.PromptEn != d.Prompt {
		fmt.Fprintf(&sb, "### Prompt (en)\n\n```\n%s\n```\n\n", d.PromptEn)
	}
	if len(d.SourceLinks) > 0 {
		sb.WriteString("### Sources\n\n")
		for _, l := range d.SourceLinks {
			fmt.Fprintf(&sb, "- %s\n", l)
		}
	}
	return sb.String()
}

func toSearchOutput(resp search.Response) SearchOutput {
	out := SearchOutput{Results: make([]CaseSummary, 0, len(resp.Hits)), Total: resp.Total}
	for _, d := range resp.Hits {
		out.Results = append(out.Results, ToCaseSummary(d))
	}
	return out
}

// ToCaseSummary converts a hit to its tool output form.
func ToCaseSummary(d document.Document) CaseSummary {
	return CaseSummary{
		ID:        d.ID,
		Type:      string(d.Type),
		Submodule: d.Submodule,
		Path:      d.Path,
		Title:     d.Title,
		TitleEn:   d.TitleEn,
		Prompt:    truncate(d.Prompt, summaryPromptRunes),
		PromptEn:  truncate(d.PromptEn, summaryPromptRunes),
		Author:    d.Author,
		Language:  string(d.Language),
	}
}

func displayTitle(d document.Document) string {
	if t := firstNonEmpty(d.TitleEn, d.Title); t != "" {
		return t
	}
	return d.Path
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// clampLimit returns limit clamped to [min, max], or defaultVal when limit <= 0.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
