package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/store"
)

const testIndex = "nano_banana_index"

func corpus() []document.Document {
	return []document.Document{
		{
			ID: "c1", Type: document.TypeCase, Submodule: "awesome-a", Path: "awesome-a/cases/1",
			Title: "标题", TitleEn: "Hi", Prompt: "画一只猫", PromptEn: "draw a cat",
			Content: "标题 Hi 画一只猫 draw a cat", Language: document.LanguageBoth,
		},
		{
			ID: "c2", Type: document.TypeCase, Submodule: "awesome-b", Path: "awesome-b/cases/2",
			Title: "猫咪", Prompt: "一只橘猫", Content: "猫咪 一只橘猫", Language: document.LanguageZh,
		},
		{
			ID: "c3", Type: document.TypeCase, Submodule: "awesome-b", Path: "awesome-b/cases/3",
			PromptEn: "catalogue of " + strings.Repeat("very long ", 10) + "prompts",
			Content:  "catalogue prompts", Language: document.LanguageUnknown,
		},
		{
			ID: "r1", Type: document.TypeReadme, Submodule: "awesome-c", Path: "awesome-c/README.md",
			Title: "Cat gallery", TitleEn: "Cat gallery", Content: "Cat gallery of prompts", Language: document.LanguageEn,
		},
	}
}

func newService(t *testing.T, docs []document.Document) (*Service, *store.BleveEngine) {
	t.Helper()
	eng := store.NewMemoryEngine()
	t.Cleanup(func() { _ = eng.Close() })
	ctx := context.Background()
	if docs != nil {
		_, err := eng.CreateIndex(ctx, testIndex, "id")
		require.NoError(t, err)
		_, err = eng.UpdateSettings(ctx, testIndex, engine.Settings{
			SearchableAttributes: []string{"title", "title_en", "prompt", "prompt_en", "author", "content"},
			FilterableAttributes: []string{"submodule", "type", "capability_code", "language", "author"},
			SortableAttributes:   []string{"submodule", "type"},
		})
		require.NoError(t, err)
		if len(docs) > 0 {
			_, err = eng.AddDocuments(ctx, testIndex, docs, "id")
			require.NoError(t, err)
		}
	}
	return NewService(eng, Options{IndexName: testIndex}), eng
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestSearch_LanguageFilter(t *testing.T) {
	// Given: documents in every language
	svc, _ := newService(t, corpus())

	// When: searching "cat" restricted to English
	resp := svc.Search(context.Background(), Request{Query: "cat", Language: document.LanguageEn})

	// Then: only en and both documents come back
	assert.ElementsMatch(t, []string{"c1", "r1"}, ids(resp.Hits))
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, DefaultResultLimit, resp.Limit)
}

func TestSearch_SubmoduleFilter(t *testing.T) {
	// Given: the corpus
	svc, _ := newService(t, corpus())

	// When: listing everything in two submodules
	resp := svc.Search(context.Background(), Request{Submodules: []string{"awesome-a", "awesome-c"}})

	// Then: only those submodules match
	assert.ElementsMatch(t, []string{"c1", "r1"}, ids(resp.Hits))
}

func TestSearch_Paging(t *testing.T) {
	// Given: the corpus
	svc, _ := newService(t, corpus())

	// When: reading page two of size two
	resp := svc.Search(context.Background(), Request{Limit: 2, Offset: 2})

	// Then: two hits out of four
	assert.Len(t, resp.Hits, 2)
	assert.Equal(t, int64(4), resp.Total)
	assert.Equal(t, 2, resp.Offset)
}

func TestSearch_MissingIndexIsEmpty(t *testing.T) {
	// Given: no index at all
	svc, _ := newService(t, nil)

	// When: searching
	resp := svc.Search(context.Background(), Request{Query: "cat"})

	// Then: an empty page, not a failure
	assert.Empty(t, resp.Hits)
	assert.NotNil(t, resp.Hits)
	assert.Zero(t, resp.Total)
}

func TestGetCaseByID(t *testing.T) {
	// Given: the corpus
	svc, _ := newService(t, corpus())
	ctx := context.Background()

	// When: looking up a present and an absent id
	doc, ok := svc.GetCaseByID(ctx, "c1")
	_, missing := svc.GetCaseByID(ctx, "nope")

	// Then: found and not found
	require.True(t, ok)
	assert.Equal(t, "draw a cat", doc.PromptEn)
	assert.False(t, missing)
}

func TestGetSubmodules(t *testing.T) {
	// Given: the corpus
	svc, _ := newService(t, corpus())

	// When: listing submodules
	subs := svc.GetSubmodules(context.Background())

	// Then: distinct and sorted
	assert.Equal(t, []string{"awesome-a", "awesome-b", "awesome-c"}, subs)
}

func TestGetSubmodules_EmptyIndex(t *testing.T) {
	// Given: an index without documents
	svc, _ := newService(t, []document.Document{})

	// Then: nothing is listed
	assert.Equal(t, []string{}, svc.GetSubmodules(context.Background()))
	assert.False(t, svc.IsIndexed(context.Background()))
}

func TestGetSuggestions(t *testing.T) {
	// Given: the corpus
	svc, _ := newService(t, corpus())

	// When: asking for suggestions
	got := svc.GetSuggestions(context.Background(), "cat", 10)

	// Then: titles are preferred and prompt text is truncated
	byText := map[string]Suggestion{}
	for _, s := range got {
		byText[s.Text] = s
	}
	require.Contains(t, byText, "Cat gallery")
	assert.Equal(t, "Cat gallery", byText["Cat gallery"].TitleEn)

	for _, s := range got {
		assert.LessOrEqual(t, len([]rune(s.Text)), 50)
	}
}

func TestGetSuggestions_ShortPrefix(t *testing.T) {
	svc, _ := newService(t, corpus())
	assert.Empty(t, svc.GetSuggestions(context.Background(), " c ", 5))
}

func TestGetSuggestions_CachedUntilInvalidate(t *testing.T) {
	// Given: a warmed cache
	svc, eng := newService(t, corpus())
	ctx := context.Background()
	first := svc.GetSuggestions(ctx, "gallery", 5)
	require.Len(t, first, 1)

	// When: the index changes
	_, err := eng.AddDocuments(ctx, testIndex, []document.Document{{
		ID: "r2", Type: document.TypeDocumentation, Submodule: "awesome-c",
		Title: "Gallery two", TitleEn: "Gallery two", Content: "gallery", Language: document.LanguageEn,
	}}, "id")
	require.NoError(t, err)

	// Then: the cached answer stands until invalidated
	assert.Len(t, svc.GetSuggestions(ctx, "gallery", 5), 1)
	svc.Invalidate()
	assert.Len(t, svc.GetSuggestions(ctx, "gallery", 5), 2)
}

func TestGetSuggestions_CallerCannotCorruptCache(t *testing.T) {
	// Given: a warmed cache
	svc, _ := newService(t, corpus())
	ctx := context.Background()
	first := svc.GetSuggestions(ctx, "gallery", 5)
	require.Len(t, first, 1)
	want := first[0]

	// When: the caller rewrites the returned slice
	first[0].Text = "mutated"

	// Then: later lookups still see the original entry
	again := svc.GetSuggestions(ctx, "gallery", 5)
	require.Len(t, again, 1)
	assert.Equal(t, want, again[0])
	again[0].Title = "mutated too"
	assert.Equal(t, want, svc.GetSuggestions(ctx, "gallery", 5)[0])
}

func TestSuggestionText(t *testing.T) {
	assert.Equal(t, "Hi", suggestionText(document.Document{Title: "标题", TitleEn: "Hi"}))
	assert.Equal(t, "标题", suggestionText(document.Document{Title: "标题"}))
	assert.Equal(t, "abc", suggestionText(document.Document{Prompt: "abc"}))
	assert.Equal(t, "", suggestionText(document.Document{}))
}
