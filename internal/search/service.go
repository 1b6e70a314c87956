// Package search is the read side: full-text queries, case lookup,
// submodule listing and autocomplete suggestions.
//
// Every method degrades instead of failing: an unreachable engine yields
// empty results and a log line, never an error to the caller.
package search

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// Defaults for the query surface.
const (
	DefaultResultLimit        = 20
	DefaultSuggestionLimit    = 5
	DefaultCacheSize          = 256
	DefaultSubmoduleScanLimit = 10000
	minSuggestionPrefix       = 2
	suggestionPromptRunes     = 50
)

// Request is one search call.
type Request struct {
	Query      string
	Language   document.Language
	Submodules []string
	Limit      int
	Offset     int
}

// Response is one page of results.
type Response struct {
	Hits             []document.Document `json:"hits"`
	Total            int64               `json:"total"`
	Limit            int                 `json:"limit"`
	Offset           int                 `json:"offset"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Text    string `json:"text"`
	Title   string `json:"title"`
	TitleEn string `json:"title_en"`
	TitleZh string `json:"title_zh"`
}

// Options configures a Service.
type Options struct {
	IndexName          string
	ResultLimit        int
	SuggestionLimit    int
	CacheSize          int
	SubmoduleScanLimit int
}

type suggestionKey struct {
	prefix string
	limit  int
}

// Service answers queries against one index.
type Service struct {
	eng   engine.Engine
	opts  Options
	cache *lru.Cache[suggestionKey, []Suggestion]
}

// NewService creates a query service. Zero option fields take defaults.
func NewService(eng engine.Engine, opts Options) *Service {
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = DefaultResultLimit
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = DefaultSuggestionLimit
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.SubmoduleScanLimit <= 0 {
		opts.SubmoduleScanLimit = DefaultSubmoduleScanLimit
	}
	cache, _ := lru.New[suggestionKey, []Suggestion](opts.CacheSize)
	return &Service{eng: eng, opts: opts, cache: cache}
}

// Search runs a full-text query. Engine failures return an empty page.
func (s *Service) Search(ctx context.Context, req Request) Response {
	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.ResultLimit
	}
	offset := max(req.Offset, 0)
	empty := Response{Hits: []document.Document{}, Limit: limit, Offset: offset}

	resp, err := s.eng.Search(ctx, s.opts.IndexName, engine.SearchRequest{
		Query:  req.Query,
		Filter: BuildFilter(req.Language, req.Submodules),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logFailure("search_failed", err, slog.String("query", req.Query))
		return empty
	}

	hits := resp.Hits
	if hits == nil {
		hits = []document.Document{}
	}
	return Response{
		Hits:             hits,
		Total:            resp.TotalHits,
		Limit:            limit,
		Offset:           offset,
		ProcessingTimeMs: resp.ProcessingTimeMs,
	}
}

// GetCaseByID fetches one document. Absence is (zero, false), not an error.
func (s *Service) GetCaseByID(ctx context.Context, id string) (document.Document, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return document.Document{}, false
	}
	doc, err := s.eng.GetDocument(ctx, s.opts.IndexName, id)
	if err != nil {
		if errors.KindOf(err) != errors.KindNotFound {
			s.logFailure("get_case_failed", err, slog.String("id", id))
		}
		return document.Document{}, false
	}
	return doc, true
}

// IsIndexed reports whether the index exists and holds documents.
func (s *Service) IsIndexed(ctx context.Context) bool {
	stats, err := s.eng.IndexStats(ctx, s.opts.IndexName)
	if err != nil {
		if errors.KindOf(err) != errors.KindNotFound {
			s.logFailure("index_stats_failed", err)
		}
		return false
	}
	return stats.NumberOfDocuments > 0
}

// GetSubmodules lists distinct submodule names, sorted. An empty or
// missing index yields an empty list.
func (s *Service) GetSubmodules(ctx context.Context) []string {
	out := []string{}
	if !s.IsIndexed(ctx) {
		return out
	}

	resp, err := s.eng.Search(ctx, s.opts.IndexName, engine.SearchRequest{
		Limit: s.opts.SubmoduleScanLimit,
	})
	if err != nil {
		s.logFailure("list_submodules_failed", err)
		return out
	}

	seen := make(map[string]bool)
	for _, hit := range resp.Hits {
		if hit.Submodule != "" && !seen[hit.Submodule] {
			seen[hit.Submodule] = true
			out = append(out, hit.Submodule)
		}
	}
	sort.Strings(out)
	return out
}

// GetSuggestions returns autocomplete entries for prefix. Prefixes shorter
// than two characters after trimming return nothing. Results are cached
// until Invalidate.
func (s *Service) GetSuggestions(ctx context.Context, prefix string, limit int) []Suggestion {
	prefix = strings.TrimSpace(prefix)
	if len([]rune(prefix)) < minSuggestionPrefix {
		return []Suggestion{}
	}
	if limit <= 0 {
		limit = s.opts.SuggestionLimit
	}

	key := suggestionKey{prefix: strings.ToLower(prefix), limit: limit}
	if cached, ok := s.cache.Get(key); ok {
		return slices.Clone(cached)
	}

	resp, err := s.eng.Search(ctx, s.opts.IndexName, engine.SearchRequest{Query: prefix, Limit: limit})
	if err != nil {
		s.logFailure("suggestions_failed", err, slog.String("prefix", prefix))
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		text := suggestionText(hit)
		if text == "" {
			continue
		}
		out = append(out, Suggestion{
			Text:    text,
			Title:   firstNonEmpty(hit.TitleEn, hit.Title),
			TitleEn: hit.TitleEn,
			TitleZh: hit.Title,
		})
	}
	s.cache.Add(key, out)
	return slices.Clone(out)
}

// Invalidate drops cached suggestions. Called after every pipeline run.
func (s *Service) Invalidate() {
	s.cache.Purge()
}

func suggestionText(d document.Document) string {
	if t := firstNonEmpty(d.TitleEn, d.Title); t != "" {
		return t
	}
	prompt := []rune(firstNonEmpty(d.PromptEn, d.Prompt))
	if len(prompt) > suggestionPromptRunes {
		prompt = prompt[:suggestionPromptRunes]
	}
	return string(prompt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Service) logFailure(msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("index", s.opts.IndexName))
	slog.Warn(msg, append(attrs, errors.LogAttrs(err)...)...)
}
