package diff

import (
	"reflect"
	"testing"

	"retrospec/internal/project"
)

func mod(id, path, hash string, deps ...string) project.Module {
	return project.Module{ID: id, Path: path, ContentHash: hash, Dependencies: deps}
}

func suite(path, hash string, deps ...string) project.TestSuite {
	return project.TestSuite{Path: path, ContentHash: hash, Dependencies: deps}
}

func build(t *testing.T, modules []project.Module, suites []project.TestSuite) *project.Project {
	t.Helper()
	p, err := project.Build(modules, suites)
	if err != nil {
		t.Fatalf("project.Build() error = %v", err)
	}
	return p
}

func TestCompare_Classification(t *testing.T) {
	original := build(t,
		[]project.Module{
			mod("same", "a.js", "h1"),
			mod("moved", "old/b.js", "h2"),
			mod("edited", "c.js", "h3"),
			mod("editedAndMoved", "d.js", "h4"),
			mod("gone", "e.js", "h5"),
		},
		[]project.TestSuite{suite("t1.js", "x1"), suite("t2.js", "x2")},
	)
	modified := build(t,
		[]project.Module{
			mod("same", "a.js", "h1"),
			mod("moved", "new/b.js", "h2"),
			mod("edited", "c.js", "h3-changed"),
			mod("editedAndMoved", "lib/d.js", "h4-changed"),
			mod("fresh", "f.js", "h6"),
		},
		[]project.TestSuite{suite("t1.js", "x1-changed"), suite("t3.js", "x3")},
	)

	got := Compare(original, modified)

	wantModules := []Change{
		{ID: "edited", Kind: Edited, OldPath: "c.js", NewPath: "c.js"},
		{ID: "editedAndMoved", Kind: Edited, OldPath: "d.js", NewPath: "lib/d.js"},
		{ID: "fresh", Kind: Added, NewPath: "f.js"},
		{ID: "gone", Kind: Deleted, OldPath: "e.js"},
		{ID: "moved", Kind: Moved, OldPath: "old/b.js", NewPath: "new/b.js"},
		{ID: "same", Kind: Unchanged, OldPath: "a.js", NewPath: "a.js"},
	}
	if !reflect.DeepEqual(got.Modules, wantModules) {
		t.Errorf("Modules =\n%+v\nwant\n%+v", got.Modules, wantModules)
	}

	wantSuites := []Change{
		{ID: "t1.js", Kind: Edited, OldPath: "t1.js", NewPath: "t1.js"},
		{ID: "t2.js", Kind: Deleted, OldPath: "t2.js"},
		{ID: "t3.js", Kind: Added, NewPath: "t3.js"},
	}
	if !reflect.DeepEqual(got.TestSuites, wantSuites) {
		t.Errorf("TestSuites =\n%+v\nwant\n%+v", got.TestSuites, wantSuites)
	}
}

func TestCompare_SelfIsUnchanged(t *testing.T) {
	p := build(t,
		[]project.Module{mod("A", "a.js", "1"), mod("B", "b.js", "2", "A")},
		[]project.TestSuite{suite("t.js", "3", "B")},
	)

	got := Compare(p, p)

	for _, c := range append(got.Modules, got.TestSuites...) {
		if c.Kind != Unchanged {
			t.Errorf("%s = %s, want %s", c.ID, c.Kind, Unchanged)
		}
	}
	if !got.IsEmpty() {
		t.Error("IsEmpty() = false for identical snapshots")
	}
}

func TestCompare_HashBeatsPath(t *testing.T) {
	tests := []struct {
		name   string
		before project.Module
		after  project.Module
		want   ChangeKind
	}{
		{"same hash new path", mod("A", "a.js", "h"), mod("A", "z.js", "h"), Moved},
		{"new hash same path", mod("A", "a.js", "h"), mod("A", "a.js", "h2"), Edited},
		{"new hash new path", mod("A", "a.js", "h"), mod("A", "z.js", "h2"), Edited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(build(t, []project.Module{tt.before}, nil), build(t, []project.Module{tt.after}, nil))
			if k := Kind(got.Modules, "A"); k != tt.want {
				t.Errorf("Kind(A) = %s, want %s", k, tt.want)
			}
		})
	}
}

func TestCompare_NilBaselineIsAllAdded(t *testing.T) {
	p := build(t,
		[]project.Module{mod("A", "a.js", "1")},
		[]project.TestSuite{suite("t1.js", "2"), suite("t2.js", "3")},
	)

	got := Compare(nil, p)

	if c := Counts(got.Modules); c[Added] != 1 || len(got.Modules) != 1 {
		t.Errorf("module counts = %v", c)
	}
	if c := Counts(got.TestSuites); c[Added] != 2 || len(got.TestSuites) != 2 {
		t.Errorf("test suite counts = %v", c)
	}
}

func TestCompare_NilModifiedIsAllDeleted(t *testing.T) {
	p := build(t, []project.Module{mod("A", "a.js", "1")}, nil)

	got := Compare(p, nil)

	if k := Kind(got.Modules, "A"); k != Deleted {
		t.Errorf("Kind(A) = %s, want %s", k, Deleted)
	}
}

func TestChangeKind_Seeds(t *testing.T) {
	want := map[ChangeKind]bool{Added: true, Edited: true, Moved: true, Deleted: false, Unchanged: false}
	for _, k := range Kinds() {
		if k.Seeds() != want[k] {
			t.Errorf("%s.Seeds() = %v, want %v", k, k.Seeds(), want[k])
		}
	}
}

func TestKind_Absent(t *testing.T) {
	if k := Kind([]Change{{ID: "a", Kind: Added}}, "b"); k != "" {
		t.Errorf("Kind(absent) = %q, want empty", k)
	}
}

func TestChanged(t *testing.T) {
	in := []Change{{ID: "a", Kind: Unchanged}, {ID: "b", Kind: Moved}}
	if got := Changed(in); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Changed() = %+v", got)
	}
}
