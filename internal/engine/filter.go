package engine

import "strings"

// FilterOp is the node kind of a Filter.
type FilterOp int

const (
	OpNone FilterOp = iota
	OpEq
	OpAnd
	OpOr
)

// Filter is a boolean filter expression over filterable attributes.
// The zero value matches everything.
type Filter struct {
	op       FilterOp
	field    string
	value    string
	children []Filter
}

// Eq matches documents whose field equals value.
func Eq(field, value string) Filter {
	return Filter{op: OpEq, field: field, value: value}
}

// And conjoins the non-empty filters.
func And(filters ...Filter) Filter {
	return combine(OpAnd, filters)
}

// Or disjoins the non-empty filters.
func Or(filters ...Filter) Filter {
	return combine(OpOr, filters)
}

// AnyOf is field = v1 OR field = v2 ...; nil when values is empty.
func AnyOf(field string, values ...string) Filter {
	fs := make([]Filter, 0, len(values))
	for _, v := range values {
		fs = append(fs, Eq(field, v))
	}
	return Or(fs...)
}

func combine(op FilterOp, filters []Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if !f.IsZero() {
			kept = append(kept, f)
		}
	}
	switch len(kept) {
	case 0:
		return Filter{}
	case 1:
		return kept[0]
	}
	return Filter{op: op, children: kept}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool { return f.op == OpNone }

// Op returns the node kind.
func (f Filter) Op() FilterOp { return f.op }

// Field returns the attribute of an Eq node.
func (f Filter) Field() string { return f.field }

// Value returns the compared value of an Eq node.
func (f Filter) Value() string { return f.value }

// Children returns the operands of an And or Or node.
func (f Filter) Children() []Filter { return f.children }

// Fields lists every attribute the filter references.
func (f Filter) Fields() []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Filter)
	walk = func(n Filter) {
		if n.op == OpEq && !seen[n.field] {
			seen[n.field] = true
			out = append(out, n.field)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(f)
	return out
}

// String renders Meilisearch filter syntax. Disjunctions are always
// parenthesised so mixing them with AND never depends on precedence.
func (f Filter) String() string {
	return f.render(false)
}

func (f Filter) render(nested bool) string {
	switch f.op {
	case OpEq:
		return f.field + " = " + quote(f.value)
	case OpOr:
		return "(" + f.join(" OR ") + ")"
	case OpAnd:
		s := f.join(" AND ")
		if nested {
			return "(" + s + ")"
		}
		return s
	}
	return ""
}

func (f Filter) join(sep string) string {
	parts := make([]string, len(f.children))
	for i, c := range f.children {
		parts[i] = c.render(true)
	}
	return strings.Join(parts, sep)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(v string) string {
	return "'" + quoteEscaper.Replace(v) + "'"
}
