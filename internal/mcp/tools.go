package mcp

import (
	"github.com/Aman-CERP/bananaindex/internal/async"
	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/search"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"the search query, in Chinese or English"`
	Language  string `json:"language,omitempty" jsonschema:"zh, en or both (default both)"`
	Submodule string `json:"submodule,omitempty" jsonschema:"comma-separated source names to restrict results to"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset    int    `json:"offset,omitempty" jsonschema:"number of results to skip"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []CaseSummary `json:"results" jsonschema:"matching documents"`
	Total   int64         `json:"total" jsonschema:"total number of matches"`
}

// CaseSummary is a search hit without the full content blob.
type CaseSummary struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Submodule string `json:"submodule"`
	Path      string `json:"path"`
	Title     string `json:"title,omitempty"`
	TitleEn   string `json:"title_en,omitempty"`
	Prompt    string `json:"prompt,omitempty" jsonschema:"prompt text, truncated"`
	PromptEn  string `json:"prompt_en,omitempty" jsonschema:"English prompt text, truncated"`
	Author    string `json:"author,omitempty"`
	Language  string `json:"language"`
}

// GetCaseInput defines the input schema for the get_case tool.
type GetCaseInput struct {
	ID string `json:"id" jsonschema:"document id as returned by search"`
}

// GetCaseOutput defines the output schema for the get_case tool.
type GetCaseOutput struct {
	Found    bool               `json:"found"`
	Document *document.Document `json:"document,omitempty"`
}

// ListSubmodulesInput defines the input schema for the list_submodules tool (no parameters).
type ListSubmodulesInput struct{}

// ListSubmodulesOutput defines the output schema for the list_submodules tool.
type ListSubmodulesOutput struct {
	Submodules []string `json:"submodules"`
}

// SuggestInput defines the input schema for the suggest tool.
type SuggestInput struct {
	Prefix string `json:"prefix" jsonschema:"partial query, at least 2 characters"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of suggestions, default 5"`
}

// SuggestOutput defines the output schema for the suggest tool.
type SuggestOutput struct {
	Suggestions []search.Suggestion `json:"suggestions"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Status async.Progress             `json:"status"`
	Run    *async.RunProgressSnapshot `json:"run,omitempty"` // present once a background run started
}

// TriggerIndexInput defines the input schema for the trigger_index tool.
type TriggerIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"re-index even when the index already has documents"`
}

// TriggerIndexOutput defines the output schema for the trigger_index tool.
type TriggerIndexOutput = async.TriggerResult
