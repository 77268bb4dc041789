package main

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestUniqueRoots(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	test := filepath.Join(root, "test")
	nested := filepath.Join(src, "spec")

	tests := []struct {
		name  string
		roots []string
		want  []string
	}{
		{"disjoint", []string{src, test}, []string{src, test}},
		{"same", []string{src, src}, []string{src}},
		{"nested", []string{src, nested}, []string{src}},
		{"root covers all", []string{src, root}, []string{root}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := uniqueRoots(tt.roots...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("uniqueRoots() = %v, want %v", got, tt.want)
			}
		})
	}
}
