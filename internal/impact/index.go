package impact

import (
	"sort"

	"retrospec/internal/project"
)

// Index is the reverse dependency graph of one project: for every module id,
// the modules and test suites that declare it as a dependency.
type Index struct {
	dependents map[string][]string
	tests      map[string][]string
}

// NewIndex builds the reverse adjacency lists in one pass over the project.
// Lists are sorted so traversals are reproducible.
func NewIndex(p *project.Project) *Index {
	idx := &Index{
		dependents: make(map[string][]string),
		tests:      make(map[string][]string),
	}
	if p == nil {
		return idx
	}

	for _, id := range p.ModuleIDs() {
		for _, dep := range p.Modules[id].Dependencies {
			idx.dependents[dep] = append(idx.dependents[dep], id)
		}
	}
	for _, path := range p.TestSuitePaths() {
		for _, dep := range p.TestSuites[path].Dependencies {
			idx.tests[dep] = append(idx.tests[dep], path)
		}
	}

	for _, list := range idx.dependents {
		sort.Strings(list)
	}
	for _, list := range idx.tests {
		sort.Strings(list)
	}
	return idx
}

// Dependents returns the ids of modules that depend directly on id.
func (idx *Index) Dependents(id string) []string {
	return idx.dependents[id]
}

// TestsFor returns the paths of test suites that depend directly on id.
func (idx *Index) TestsFor(id string) []string {
	return idx.tests[id]
}
