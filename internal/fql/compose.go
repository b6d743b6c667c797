package fql

import "strings"

// Compose joins predicates and an optional raw expression under and(...).
//
// No contributors yields "", which callers treat as "no filter". A single
// contributor is returned unwrapped. Order is preserved exactly and duplicates
// are kept; the raw expression, when present, is always last.
func Compose(preds []Predicate, raw string) string {
	all := preds
	if raw = strings.TrimSpace(raw); raw != "" {
		all = append(preds[:len(preds):len(preds)], Raw(raw))
	}

	parts := make([]string, 0, len(all))
	for _, p := range all {
		parts = append(parts, p.String())
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return And(parts...)
	}
}

// And wraps already-rendered expressions in the n-ary and combinator.
func And(exprs ...string) string {
	return "and(" + strings.Join(exprs, ", ") + ")"
}
