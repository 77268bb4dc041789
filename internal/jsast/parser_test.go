//go:build cgo

package jsast

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseCalls(t *testing.T) {
	src := []byte(`
angular.module('app', ['ngRoute', "core", someVar]);
angular
  .module('app.core', [])
  .controller('Main', function () {});
define('named', ['a', 'b'], function (a, b) {
  return require('c');
});
`)
	s, err := Parse(context.Background(), src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	mods := s.CallsTo("angular.module")
	if len(mods) != 2 {
		t.Fatalf("angular.module calls = %d, want 2", len(mods))
	}
	if !mods[0].Is("angular.module", KindString, KindArray) {
		t.Errorf("first call args = %+v", mods[0].Args)
	}
	if got := mods[0].Args[1].Strings(); !reflect.DeepEqual(got, []string{"ngRoute", "core"}) {
		t.Errorf("deps = %v, want [ngRoute core]", got)
	}
	if mods[1].Args[0].Str != "app.core" {
		t.Errorf("second module = %q, want app.core", mods[1].Args[0].Str)
	}

	defs := s.CallsTo("define")
	if len(defs) != 1 || !defs[0].Is("define", KindString, KindArray, KindFunction) {
		t.Fatalf("define calls = %+v", defs)
	}
	if defs[0].Line != 6 {
		t.Errorf("define line = %d, want 6", defs[0].Line)
	}

	reqs := s.CallsTo("require")
	if len(reqs) != 1 || reqs[0].Args[0].Str != "c" {
		t.Errorf("require calls = %+v", reqs)
	}
}

func TestParseComments(t *testing.T) {
	src := []byte(`// retrospec.testSuite(['a'])
/* block
   comment */
var x = 1;
`)
	s, err := Parse(context.Background(), src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(s.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(s.Comments))
	}
	if s.Comments[0].Text != " retrospec.testSuite(['a'])" {
		t.Errorf("comment[0] = %q", s.Comments[0].Text)
	}
	if s.Comments[1].Line != 2 {
		t.Errorf("comment[1].Line = %d, want 2", s.Comments[1].Line)
	}
}

func TestParseObjectLiteral(t *testing.T) {
	src := []byte(`require.config({ baseUrl: 'js', paths: { "jquery": 'lib/jquery' } });`)
	s, err := Parse(context.Background(), src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	calls := s.CallsTo("require.config")
	if len(calls) != 1 || !calls[0].Is("require.config", KindObject) {
		t.Fatalf("require.config calls = %+v", calls)
	}
	cfg := calls[0].Args[0].Fields
	if cfg["baseUrl"].Str != "js" {
		t.Errorf("baseUrl = %q, want js", cfg["baseUrl"].Str)
	}
	if cfg["paths"].Fields["jquery"].Str != "lib/jquery" {
		t.Errorf("paths.jquery = %q", cfg["paths"].Fields["jquery"].Str)
	}
}

func TestFlatten(t *testing.T) {
	src := []byte(`$.testHelper.asyncLoad([["a", "b"], ["c"], "d"]);`)
	s, err := Parse(context.Background(), src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	calls := s.CallsTo("$.testHelper.asyncLoad")
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	got := calls[0].Args[0].Flatten()
	if want := []string{"a", "b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(context.Background(), []byte("angular.module('x', [;\n"))
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("Parse() error = %v, want *SyntaxError", err)
	}
	if se.Line != 1 {
		t.Errorf("Line = %d, want 1", se.Line)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`'abc'`, "abc"},
		{`"a\"b"`, `a"b`},
		{`'it\'s'`, "it's"},
		{"`tpl`", "tpl"},
		{`'a\nb'`, "a\nb"},
	}
	for _, tt := range tests {
		if got := unquote(tt.in); got != tt.want {
			t.Errorf("unquote(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
