package impact

import (
	"reflect"
	"sync"
	"testing"

	"retrospec/internal/diff"
	"retrospec/internal/project"
)

type graph struct {
	modules map[string][]string // id -> deps
	tests   map[string][]string // path -> deps
	hashes  map[string]string   // key -> hash override
	paths   map[string]string   // module id -> path override
}

func (g graph) build(t *testing.T) *project.Project {
	t.Helper()
	var mods []project.Module
	for id, deps := range g.modules {
		path := id + ".js"
		if p, ok := g.paths[id]; ok {
			path = p
		}
		hash := "h-" + id
		if h, ok := g.hashes[id]; ok {
			hash = h
		}
		mods = append(mods, project.Module{ID: id, Path: path, Dependencies: deps, ContentHash: hash})
	}
	var suites []project.TestSuite
	for path, deps := range g.tests {
		hash := "h-" + path
		if h, ok := g.hashes[path]; ok {
			hash = h
		}
		suites = append(suites, project.TestSuite{Path: path, Dependencies: deps, ContentHash: hash})
	}
	p, err := project.Build(mods, suites)
	if err != nil {
		t.Fatalf("project.Build() error = %v", err)
	}
	return p
}

func baseGraph() graph {
	return graph{
		modules: map[string][]string{
			"A": nil,
			"B": {"A"},
			"C": {"B"},
		},
		tests: map[string][]string{
			"t1": {"A"},
			"t2": {"C"},
		},
	}
}

func TestSelect_SelfDiffSelectsNothing(t *testing.T) {
	p := baseGraph().build(t)

	got := Select(p, diff.Compare(p, p))

	if len(got) != 0 {
		t.Errorf("Select(p, diff(p,p)) = %v, want empty", got)
	}
}

func TestSelect_TransitivePropagation(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.hashes = map[string]string{"A": "h-A-edited"}
	current := g.build(t)

	got := Select(current, diff.Compare(baseline, current))

	if want := []string{"t1", "t2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_TwoHopPropagationOnly(t *testing.T) {
	// B edited; t2 depends on C which depends on B. t1 depends on A only.
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.hashes = map[string]string{"B": "h-B-edited"}
	current := g.build(t)

	got := Select(current, diff.Compare(baseline, current))

	if want := []string{"t2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_DeletionSelectsNothing(t *testing.T) {
	g := baseGraph()
	g.modules["D"] = nil
	baseline := g.build(t)
	current := baseGraph().build(t)

	got := Select(current, diff.Compare(baseline, current))

	if len(got) != 0 {
		t.Errorf("Select() = %v, want empty", got)
	}
}

func TestSelect_NewTestOnly(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.tests["t3"] = []string{"A"}
	current := g.build(t)

	got := Select(current, diff.Compare(baseline, current))

	if want := []string{"t3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_FirstRunSelectsEverything(t *testing.T) {
	g := baseGraph()
	g.tests["orphan"] = nil
	current := g.build(t)

	sel := Analyze(current, diff.Compare(nil, current))

	if want := current.TestSuitePaths(); !reflect.DeepEqual(sel.Paths(), want) {
		t.Errorf("Select() = %v, want %v", sel.Paths(), want)
	}
}

func TestSelect_CycleTerminates(t *testing.T) {
	g := graph{
		modules: map[string][]string{
			"A": {"B"},
			"B": {"A"},
			"C": {"A"},
		},
		tests: map[string][]string{
			"ta": {"A"},
			"tb": {"B"},
			"tc": {"C"},
			"tx": {"X"},
		},
	}
	baseline := g.build(t)
	g.hashes = map[string]string{"A": "changed"}
	current := g.build(t)

	sel := Analyze(current, diff.Compare(baseline, current))

	if want := []string{"ta", "tb", "tc"}; !reflect.DeepEqual(sel.Paths(), want) {
		t.Errorf("Select() = %v, want %v", sel.Paths(), want)
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(sel.ImpactedModules, want) {
		t.Errorf("ImpactedModules = %v, want %v", sel.ImpactedModules, want)
	}
}

func TestSelect_DiamondSelectsOnce(t *testing.T) {
	g := graph{
		modules: map[string][]string{
			"base":  nil,
			"left":  {"base"},
			"right": {"base"},
			"top":   {"left", "right"},
		},
		tests: map[string][]string{
			"t": {"top", "left", "right", "base"},
		},
	}
	baseline := g.build(t)
	g.hashes = map[string]string{"base": "changed"}
	current := g.build(t)

	got := Select(current, diff.Compare(baseline, current))

	if want := []string{"t"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_DanglingDependencyIsLeaf(t *testing.T) {
	g := graph{
		modules: map[string][]string{
			"app": {"jquery", "lodash"},
		},
		tests: map[string][]string{
			"t-app":    {"app"},
			"t-jquery": {"jquery"},
		},
	}
	baseline := g.build(t)
	g.hashes = map[string]string{"app": "changed"}
	current := g.build(t)

	got := Select(current, diff.Compare(baseline, current))

	if want := []string{"t-app"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_MovedModuleSeeds(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.paths = map[string]string{"C": "lib/C.js"}
	current := g.build(t)

	d := diff.Compare(baseline, current)
	if k := diff.Kind(d.Modules, "C"); k != diff.Moved {
		t.Fatalf("Kind(C) = %s, want moved", k)
	}

	if got, want := Select(current, d), []string{"t2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelect_DeletedTestNotSelected(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	delete(g.tests, "t1")
	g.hashes = map[string]string{"A": "changed"}
	current := g.build(t)

	got := Select(current, diff.Compare(baseline, current))

	if want := []string{"t2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestAnalyze_Reasons(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.hashes = map[string]string{"A": "changed", "t2": "changed"}
	g.tests["t3"] = []string{"B"}
	current := g.build(t)

	sel := Analyze(current, diff.Compare(baseline, current))

	want := []SelectedTest{
		{Path: "t1", Reason: ReasonDirect, Module: "A", Seed: "A", Depth: 0},
		{Path: "t2", Reason: ReasonTestChanged, Change: diff.Edited},
		{Path: "t3", Reason: ReasonTestChanged, Change: diff.Added},
	}
	if !reflect.DeepEqual(sel.Tests, want) {
		t.Errorf("Tests =\n%+v\nwant\n%+v", sel.Tests, want)
	}
	if sel.Count(ReasonTestChanged) != 2 || sel.Count(ReasonDirect) != 1 {
		t.Errorf("counts: changed=%d direct=%d", sel.Count(ReasonTestChanged), sel.Count(ReasonDirect))
	}
}

func TestAnalyze_TransitiveDepth(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.hashes = map[string]string{"A": "changed"}
	current := g.build(t)

	sel := Analyze(current, diff.Compare(baseline, current))

	var t2 SelectedTest
	for _, st := range sel.Tests {
		if st.Path == "t2" {
			t2 = st
		}
	}
	if t2.Reason != ReasonTransitive || t2.Module != "C" || t2.Seed != "A" || t2.Depth != 2 {
		t.Errorf("t2 = %+v, want transitive via C from A at depth 2", t2)
	}
}

func TestAnalyze_NilDiff(t *testing.T) {
	sel := Analyze(baseGraph().build(t), nil)
	if len(sel.Tests) != 0 {
		t.Errorf("Analyze(nil diff) = %v, want empty", sel.Paths())
	}
}

func TestSelect_ConcurrentCallsAreIndependent(t *testing.T) {
	baseline := baseGraph().build(t)
	g := baseGraph()
	g.hashes = map[string]string{"A": "changed"}
	current := g.build(t)
	d := diff.Compare(baseline, current)
	self := diff.Compare(current, current)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if got := Select(current, d); len(got) != 2 {
				errs <- "changed diff selected wrong set"
			}
		}()
		go func() {
			defer wg.Done()
			if got := Select(current, self); len(got) != 0 {
				errs <- "self diff selected tests"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestIndex(t *testing.T) {
	idx := NewIndex(baseGraph().build(t))

	if got := idx.Dependents("A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Dependents(A) = %v", got)
	}
	if got := idx.TestsFor("C"); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Errorf("TestsFor(C) = %v", got)
	}
	if got := idx.Dependents("missing"); got != nil {
		t.Errorf("Dependents(missing) = %v, want nil", got)
	}
}
