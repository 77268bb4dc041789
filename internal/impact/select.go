package impact

import (
	"sort"

	"retrospec/internal/diff"
	"retrospec/internal/project"
)

// Reason says why a test suite was selected.
type Reason string

const (
	// ReasonTestChanged: the suite itself was added, edited or moved.
	ReasonTestChanged Reason = "test-changed"
	// ReasonDirect: the suite depends on a changed module.
	ReasonDirect Reason = "direct"
	// ReasonTransitive: the suite depends on a module that reaches a changed
	// module through its own dependencies.
	ReasonTransitive Reason = "transitive"
)

// SelectedTest is one entry of a selection with its provenance.
type SelectedTest struct {
	Path   string          `json:"path"`
	Reason Reason          `json:"reason"`
	Change diff.ChangeKind `json:"change,omitempty"` // set for ReasonTestChanged
	Module string          `json:"module,omitempty"` // module the suite depends on
	Seed   string          `json:"seed,omitempty"`   // changed module the walk started from
	Depth  int             `json:"depth"`            // hops from Seed to Module
}

// Selection is the result of impact analysis.
type Selection struct {
	Tests           []SelectedTest `json:"tests"`
	Seeds           []string       `json:"seeds"`
	ImpactedModules []string       `json:"impactedModules"`
}

// Paths returns the selected test suite paths, sorted.
func (s *Selection) Paths() []string {
	out := make([]string, len(s.Tests))
	for i, t := range s.Tests {
		out[i] = t.Path
	}
	return out
}

// Count returns the number of selected test suites for each reason.
func (s *Selection) Count(r Reason) int {
	n := 0
	for _, t := range s.Tests {
		if t.Reason == r {
			n++
		}
	}
	return n
}

// Select returns the deduplicated, sorted set of test suite paths that must
// be re-run for d, evaluated against the current project p.
func Select(p *project.Project, d *diff.Result) []string {
	return Analyze(p, d).Paths()
}

// Analyze is Select with provenance for every selected test suite.
func Analyze(p *project.Project, d *diff.Result) *Selection {
	return AnalyzeWithIndex(p, NewIndex(p), d)
}

type visit struct {
	seed  string
	depth int
}

// AnalyzeWithIndex reuses a prebuilt index of p, for callers selecting
// against one project repeatedly.
func AnalyzeWithIndex(p *project.Project, idx *Index, d *diff.Result) *Selection {
	sel := &Selection{Tests: []SelectedTest{}, Seeds: []string{}, ImpactedModules: []string{}}
	if d == nil {
		return sel
	}

	picked := make(map[string]SelectedTest)

	// Step A: new, edited and moved test suites.
	for _, c := range d.TestSuites {
		if !c.Kind.Seeds() {
			continue
		}
		if _, ok := p.TestSuite(c.ID); !ok {
			continue
		}
		picked[c.ID] = SelectedTest{Path: c.ID, Reason: ReasonTestChanged, Change: c.Kind}
	}

	// Step B: seed modules.
	for _, c := range d.Modules {
		if c.Kind.Seeds() {
			sel.Seeds = append(sel.Seeds, c.ID)
		}
	}
	sort.Strings(sel.Seeds)

	// Step C: breadth-first walk of the reverse graph from all seeds at once.
	// visited is local to this call; it bounds the walk on cyclic graphs.
	visited := make(map[string]visit, len(sel.Seeds))
	queue := make([]string, 0, len(sel.Seeds))
	for _, id := range sel.Seeds {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = visit{seed: id}
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		v := visited[id]
		sel.ImpactedModules = append(sel.ImpactedModules, id)

		for _, path := range idx.TestsFor(id) {
			if _, ok := picked[path]; ok {
				continue
			}
			reason := ReasonTransitive
			if v.depth == 0 {
				reason = ReasonDirect
			}
			picked[path] = SelectedTest{Path: path, Reason: reason, Module: id, Seed: v.seed, Depth: v.depth}
		}

		for _, dependent := range idx.Dependents(id) {
			if _, ok := visited[dependent]; ok {
				continue
			}
			visited[dependent] = visit{seed: v.seed, depth: v.depth + 1}
			queue = append(queue, dependent)
		}
	}
	sort.Strings(sel.ImpactedModules)

	for _, t := range picked {
		sel.Tests = append(sel.Tests, t)
	}
	sort.Slice(sel.Tests, func(i, j int) bool { return sel.Tests[i].Path < sel.Tests[j].Path })
	return sel
}
