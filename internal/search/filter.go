package search

import (
	"strings"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
)

// ParseSubmodules splits a comma separated list, trimming blanks.
func ParseSubmodules(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// BuildFilter maps a language choice and submodule set to an engine filter.
//
//	zh        → (language = 'zh' OR language = 'both')
//	en        → (language = 'en' OR language = 'both')
//	both / "" → no language clause
//
// Submodules become one equality or a parenthesised disjunction, ANDed with
// the language clause.
func BuildFilter(lang document.Language, submodules []string) engine.Filter {
	var clauses []engine.Filter

	switch lang {
	case document.LanguageZh, document.LanguageEn:
		clauses = append(clauses, engine.Or(
			engine.Eq("language", string(lang)),
			engine.Eq("language", string(document.LanguageBoth)),
		))
	}

	if f := engine.AnyOf("submodule", submodules...); !f.IsZero() {
		clauses = append(clauses, f)
	}
	return engine.And(clauses...)
}
