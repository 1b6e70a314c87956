package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/search"
)

func TestFormatSearchResults_Empty(t *testing.T) {
	got := FormatSearchResults("cat", search.Response{})
	assert.Equal(t, `No results found for "cat"`, got)
}

func TestFormatSearchResults_NumbersFromOffset(t *testing.T) {
	resp := search.Response{
		Hits:   sampleDocs(),
		Total:  12,
		Offset: 10,
	}

	got := FormatSearchResults("cat", resp)

	assert.Contains(t, got, "Showing 2 of 12 results")
	assert.Contains(t, got, "### 11. Hi")
	assert.Contains(t, got, "### 12. Catalog")
	assert.Contains(t, got, "> draw a cat")
}

func TestFormatCase_SkipsEmptyFields(t *testing.T) {
	d := sampleDocs()[0]
	d.SourceLinks = []string{"https://example.com/1"}

	got := FormatCase(d)

	assert.True(t, strings.HasPrefix(got, "## Hi\n"))
	assert.Contains(t, got, "**Title (zh):** 标题")
	assert.Contains(t, got, "- https://example.com/1")
	assert.NotContains(t, got, "**Author:**")
}

func TestToCaseSummary_TruncatesPrompt(t *testing.T) {
	d := document.Document{ID: "x", Prompt: strings.Repeat("猫", 300)}

	s := ToCaseSummary(d)

	assert.Equal(t, summaryPromptRunes+1, len([]rune(s.Prompt)))
	assert.True(t, strings.HasSuffix(s.Prompt, "…"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(80, 10, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 1, 50))
}
