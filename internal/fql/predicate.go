// Package fql models predicates of the runs Filter Query Language and renders
// them into expression text.
//
// Predicates stay typed values until Compose renders them, so quoting happens
// in exactly one place. Raw predicates are the only exception: they carry text
// the caller already wrote in FQL and are emitted verbatim.
package fql

import (
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/lsq/internal/timespec"
)

// Field names understood by the runs query endpoint.
const (
	FieldTags      = "tags"
	FieldLatency   = "latency"
	FieldStartTime = "start_time"
)

// Kind identifies the FQL function a predicate renders to.
type Kind int

const (
	KindHas Kind = iota
	KindSearch
	KindGreater
	KindLess
	KindRaw
)

var kindFuncs = map[Kind]string{
	KindHas:     "has",
	KindSearch:  "search",
	KindGreater: "gt",
	KindLess:    "lt",
}

// Predicate is one comparison or membership test.
type Predicate struct {
	Kind  Kind
	Field string
	Value string
}

// Has tests that a list field contains value, e.g. has(tags, "prod").
func Has(field, value string) Predicate {
	return Predicate{Kind: KindHas, Field: field, Value: value}
}

// Search is a server-side full-text substring search.
func Search(term string) Predicate {
	return Predicate{Kind: KindSearch, Value: term}
}

// Gt tests field > value.
func Gt(field, value string) Predicate {
	return Predicate{Kind: KindGreater, Field: field, Value: value}
}

// Lt tests field < value.
func Lt(field, value string) Predicate {
	return Predicate{Kind: KindLess, Field: field, Value: value}
}

// Raw wraps caller-supplied FQL text. It is trusted and not escaped.
func Raw(text string) Predicate {
	return Predicate{Kind: KindRaw, Value: text}
}

// DurationLiteral renders a duration operand, e.g. "5s".
func DurationLiteral(d timespec.Duration) string {
	return d.String()
}

// TimeLiteral renders an instant operand in UTC.
func TimeLiteral(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// String renders the predicate as FQL text.
func (p Predicate) String() string {
	if p.Kind == KindRaw {
		return p.Value
	}

	var b strings.Builder
	b.WriteString(kindFuncs[p.Kind])
	b.WriteByte('(')
	if p.Field != "" {
		b.WriteString(p.Field)
		b.WriteString(", ")
	}
	b.WriteString(Quote(p.Value))
	b.WriteByte(')')
	return b.String()
}

// Quote renders s as a double-quoted FQL string literal. Backslashes, quotes
// and control characters are escaped so the value cannot end the literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\u`)
				hex := strconv.FormatInt(int64(r), 16)
				b.WriteString(strings.Repeat("0", 4-len(hex)))
				b.WriteString(hex)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
