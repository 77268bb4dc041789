// Package jsast extracts the small slice of JavaScript structure the
// extractors care about: call expressions with literal arguments, and
// comments. Parsing is backed by tree-sitter and needs cgo.
package jsast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCGO is returned when JavaScript parsing is unavailable due to missing CGO.
var ErrNoCGO = errors.New("javascript parsing requires CGO (tree-sitter)")

// Kind classifies an argument value.
type Kind int

const (
	// KindOther is any expression that is not a literal the extractors read.
	KindOther Kind = iota
	KindString
	KindArray
	KindObject
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "other"
	}
}

// Value is a literal argument. Only the field matching Kind is set.
type Value struct {
	Kind   Kind
	Str    string
	Elems  []Value
	Fields map[string]Value
	Text   string
}

// Strings returns the string elements of an array value, skipping anything
// that is not a string literal. Nested arrays are not descended.
func (v Value) Strings() []string {
	if v.Kind != KindArray {
		return nil
	}
	out := make([]string, 0, len(v.Elems))
	for _, e := range v.Elems {
		if e.Kind == KindString {
			out = append(out, e.Str)
		}
	}
	return out
}

// Flatten returns every string literal reachable through nested arrays, in
// source order.
func (v Value) Flatten() []string {
	switch v.Kind {
	case KindString:
		return []string{v.Str}
	case KindArray:
		var out []string
		for _, e := range v.Elems {
			out = append(out, e.Flatten()...)
		}
		return out
	default:
		return nil
	}
}

// Call is one call expression.
type Call struct {
	// Callee is the called expression with whitespace removed, for example
	// "angular.module" or "$.testHelper.asyncLoad".
	Callee string
	Args   []Value
	Line   int
}

// Is reports whether the call targets callee with exactly the given
// argument kinds.
func (c Call) Is(callee string, kinds ...Kind) bool {
	if c.Callee != callee || len(c.Args) != len(kinds) {
		return false
	}
	for i, k := range kinds {
		if c.Args[i].Kind != k {
			return false
		}
	}
	return true
}

// Comment is a line or block comment with its delimiters stripped.
type Comment struct {
	Text string
	Line int
}

// Source is the extracted view of one parsed file.
type Source struct {
	// Calls holds every call expression in source order, nested calls
	// included.
	Calls    []Call
	Comments []Comment
}

// CallsTo returns the calls whose callee matches one of names.
func (s *Source) CallsTo(names ...string) []Call {
	var out []Call
	for _, c := range s.Calls {
		for _, n := range names {
			if c.Callee == n {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// SyntaxError reports source that tree-sitter could not parse cleanly.
type SyntaxError struct {
	Line   int
	Column int
	Near   string
}

func (e *SyntaxError) Error() string {
	near := strings.TrimSpace(e.Near)
	if len(near) > 40 {
		near = near[:40] + "..."
	}
	if near == "" {
		return fmt.Sprintf("syntax error at line %d, column %d", e.Line, e.Column)
	}
	return fmt.Sprintf("syntax error at line %d, column %d near %q", e.Line, e.Column, near)
}

func stripComment(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		return raw[2:]
	case strings.HasPrefix(raw, "/*"):
		return strings.TrimSuffix(raw[2:], "*/")
	default:
		return raw
	}
}

// unquote decodes a JavaScript string literal including its quotes.
func unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}

	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\n':
			// line continuation
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String()
}
