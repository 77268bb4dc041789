//go:build cgo

package jsast

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

var parsers = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(javascript.GetLanguage())
		return p
	},
}

// IsAvailable reports whether JavaScript parsing is compiled in.
func IsAvailable() bool {
	return true
}

// Parse parses JavaScript source. Source with syntax errors yields a
// *SyntaxError pointing at the first error node.
func Parse(ctx context.Context, source []byte) (*Source, error) {
	p := parsers.Get().(*sitter.Parser)
	defer parsers.Put(p)

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, source)
	}

	w := walker{src: source, out: &Source{}}
	w.walk(root)
	return w.out, nil
}

type walker struct {
	src []byte
	out *Source
}

func (w *walker) walk(n *sitter.Node) {
	switch n.Type() {
	case "comment":
		w.out.Comments = append(w.out.Comments, Comment{
			Text: stripComment(n.Content(w.src)),
			Line: int(n.StartPoint().Row) + 1,
		})
		return
	case "call_expression":
		w.out.Calls = append(w.out.Calls, w.call(n))
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		w.walk(n.Child(i))
	}
}

func (w *walker) call(n *sitter.Node) Call {
	c := Call{Line: int(n.StartPoint().Row) + 1}
	if fn := n.ChildByFieldName("function"); fn != nil {
		c.Callee = strings.Join(strings.Fields(fn.Content(w.src)), "")
	}
	if args := n.ChildByFieldName("arguments"); args != nil && args.Type() == "arguments" {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			a := args.NamedChild(i)
			if a.Type() == "comment" {
				continue
			}
			c.Args = append(c.Args, w.value(a))
		}
	}
	return c
}

func (w *walker) value(n *sitter.Node) Value {
	text := n.Content(w.src)
	switch n.Type() {
	case "string":
		return Value{Kind: KindString, Str: unquote(text), Text: text}
	case "template_string":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "template_substitution" {
				return Value{Kind: KindOther, Text: text}
			}
		}
		return Value{Kind: KindString, Str: unquote(text), Text: text}
	case "array":
		v := Value{Kind: KindArray, Text: text}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			e := n.NamedChild(i)
			if e.Type() == "comment" {
				continue
			}
			v.Elems = append(v.Elems, w.value(e))
		}
		return v
	case "object":
		v := Value{Kind: KindObject, Text: text, Fields: map[string]Value{}}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			pair := n.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			key, val := pair.ChildByFieldName("key"), pair.ChildByFieldName("value")
			if key == nil || val == nil {
				continue
			}
			name := key.Content(w.src)
			if key.Type() == "string" {
				name = unquote(name)
			}
			v.Fields[name] = w.value(val)
		}
		return v
	case "function", "function_expression", "arrow_function", "generator_function":
		return Value{Kind: KindFunction, Text: text}
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return w.value(n.NamedChild(0))
		}
	}
	return Value{Kind: KindOther, Text: text}
}

func syntaxError(root *sitter.Node, src []byte) *SyntaxError {
	n := firstError(root)
	if n == nil {
		n = root
	}
	pt := n.StartPoint()
	return &SyntaxError{
		Line:   int(pt.Row) + 1,
		Column: int(pt.Column) + 1,
		Near:   n.Content(src),
	}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			if e := firstError(c); e != nil {
				return e
			}
		}
	}
	return nil
}
