package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Deterministic(t *testing.T) {
	a := NewID("awesome-x", TypeCase, "awesome-x/cases/1")
	b := NewID("awesome-x", TypeCase, "awesome-x/cases/1")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.Equal(t, "9fb979c1213359666fefc2f4460673ab", a)
}

func TestNewID_DistinctInputs(t *testing.T) {
	ids := map[string]bool{
		NewID("a", TypeCase, "p"):          true,
		NewID("a", TypeReadme, "p"):        true,
		NewID("b", TypeCase, "p"):          true,
		NewID("a", TypeCase, "q"):          true,
		NewID("a", TypeDocumentation, "p"): true,
	}
	assert.Len(t, ids, 5)
}

func TestDetectLanguage_TruthTable(t *testing.T) {
	tests := []struct {
		title, titleEn string
		want           Language
	}{
		{"标题", "Hi", LanguageBoth},
		{"标题", "", LanguageZh},
		{"", "Hi", LanguageEn},
		{"", "", LanguageUnknown},
		{"   ", "\t", LanguageUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.title, tt.titleEn), "%q/%q", tt.title, tt.titleEn)
	}
}

func TestJoinContent_SkipsEmpty(t *testing.T) {
	assert.Equal(t, "标题 Hi draw a cat", JoinContent("标题", "", "Hi", "  ", "draw a cat"))
	assert.Equal(t, "", JoinContent())
	assert.Equal(t, "", JoinContent("", " "))
}

func TestDocument_MarshalJSON_SourceLinksNeverNull(t *testing.T) {
	doc := Document{ID: "x", Type: TypeReadme}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"source_links":[]`)
	assert.Contains(t, string(data), `"title_en":""`)
	assert.Contains(t, string(data), `"type":"readme"`)
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LanguageZh, ParseLanguage("ZH"))
	assert.Equal(t, LanguageEn, ParseLanguage(" en "))
	assert.Equal(t, LanguageBoth, ParseLanguage("both"))
	assert.Equal(t, Language(""), ParseLanguage("fr"))
}
