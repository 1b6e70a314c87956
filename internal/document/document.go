// Package document defines the normalized record every content source is
// reduced to before it reaches the search engine.
package document

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Type classifies where a document came from.
type Type string

const (
	TypeCase          Type = "case"
	TypeReadme        Type = "readme"
	TypeDocumentation Type = "documentation"
)

// Language tags which of the bilingual titles a document carries.
type Language string

const (
	LanguageBoth    Language = "both"
	LanguageZh      Language = "zh"
	LanguageEn      Language = "en"
	LanguageUnknown Language = "unknown"
)

// Document is one searchable record. The JSON names are the engine schema.
// String fields are never absent; a missing value is "".
type Document struct {
	ID             string   `json:"id"`
	Type           Type     `json:"type"`
	Submodule      string   `json:"submodule"`
	Path           string   `json:"path"`
	Title          string   `json:"title"`
	TitleEn        string   `json:"title_en"`
	Prompt         string   `json:"prompt"`
	PromptEn       string   `json:"prompt_en"`
	Author         string   `json:"author"`
	AuthorLink     string   `json:"author_link"`
	Image          string   `json:"image"`
	CapabilityCode string   `json:"capability_code"`
	CapabilityType string   `json:"capability_type"`
	Content        string   `json:"content"`
	Language       Language `json:"language"`
	SourceLinks    []string `json:"source_links"`
}

// MarshalJSON keeps source_links an array even when empty.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	p := plain(d)
	if p.SourceLinks == nil {
		p.SourceLinks = []string{}
	}
	return json.Marshal(p)
}

// NewID derives the stable document id: hex MD5 of "submodule:type:path".
// The same source item always maps to the same id across runs.
func NewID(submodule string, typ Type, path string) string {
	sum := md5.Sum([]byte(submodule + ":" + string(typ) + ":" + path))
	return hex.EncodeToString(sum[:])
}

// DetectLanguage tags a document by which titles are present.
func DetectLanguage(title, titleEn string) Language {
	hasZh := strings.TrimSpace(title) != ""
	hasEn := strings.TrimSpace(titleEn) != ""
	switch {
	case hasZh && hasEn:
		return LanguageBoth
	case hasZh:
		return LanguageZh
	case hasEn:
		return LanguageEn
	default:
		return LanguageUnknown
	}
}

// JoinContent joins the non-empty parts with single spaces.
func JoinContent(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// ParseLanguage accepts the query-side language names. Unknown input is "".
func ParseLanguage(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageZh:
		return LanguageZh
	case LanguageEn:
		return LanguageEn
	case LanguageBoth:
		return LanguageBoth
	}
	return ""
}
