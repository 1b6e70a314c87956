package store

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/bananaindex/internal/document"
)

// textFields are analyzed for full-text matching. The cjk analyzer emits
// bigrams for Han text and plain lowercase terms for Latin text, which
// covers the zh/en mix in case titles and prompts.
var textFields = []string{"title", "title_en", "prompt", "prompt_en", "author", "content"}

// keywordFields are indexed verbatim under keywordField(name) for filters.
var keywordFields = []string{"submodule", "type", "capability_code", "capability_type", "language", "author", "path"}

func keywordField(name string) string { return "kw_" + name }

func isKeywordField(name string) bool {
	for _, f := range keywordFields {
		if f == name {
			return true
		}
	}
	return false
}

func newIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentStaticMapping()

	for _, f := range textFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = cjk.AnalyzerName
		fm.Store = false
		doc.AddFieldMappingsAt(f, fm)
	}
	for _, f := range keywordFields {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = false
		doc.AddFieldMappingsAt(keywordField(f), fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = cjk.AnalyzerName
	return im
}

// indexedFields flattens a document into the field map the mapping expects.
func indexedFields(d document.Document) map[string]any {
	return map[string]any{
		"title":     d.Title,
		"title_en":  d.TitleEn,
		"prompt":    d.Prompt,
		"prompt_en": d.PromptEn,
		"author":    d.Author,
		"content":   d.Content,

		keywordField("submodule"):       d.Submodule,
		keywordField("type"):            string(d.Type),
		keywordField("capability_code"): d.CapabilityCode,
		keywordField("capability_type"): d.CapabilityType,
		keywordField("language"):        string(d.Language),
		keywordField("author"):          d.Author,
		keywordField("path"):            d.Path,
	}
}
