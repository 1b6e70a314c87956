package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_String(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"zero", Filter{}, ""},
		{"eq", Eq("submodule", "a"), "submodule = 'a'"},
		{"language", AnyOf("language", "zh", "both"), "(language = 'zh' OR language = 'both')"},
		{"submodules", AnyOf("submodule", "a", "b"), "(submodule = 'a' OR submodule = 'b')"},
		{"single value collapses", AnyOf("submodule", "a"), "submodule = 'a'"},
		{
			"and of ors",
			And(AnyOf("language", "en", "both"), AnyOf("submodule", "a", "b")),
			"(language = 'en' OR language = 'both') AND (submodule = 'a' OR submodule = 'b')",
		},
		{"and drops zero", And(Filter{}, Eq("type", "case")), "type = 'case'"},
		{"nested and in or", Or(And(Eq("a", "1"), Eq("b", "2")), Eq("c", "3")), "((a = '1' AND b = '2') OR c = '3')"},
		{"quotes escaped", Eq("author", "O'Neil"), `author = 'O\'Neil'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.String())
		})
	}
}

func TestFilter_Fields(t *testing.T) {
	f := And(AnyOf("language", "zh", "both"), Eq("submodule", "a"))
	assert.Equal(t, []string{"language", "submodule"}, f.Fields())
	assert.True(t, AnyOf("submodule").IsZero())
}
