// Package project holds the snapshot data model: modules, test suites and
// the Project that keys them. Records are validated on construction and
// treated as immutable afterwards.
package project

import (
	"fmt"
	"sort"
	"strings"
)

// Module is one unit of source code that can be depended upon.
type Module struct {
	ID           string   `json:"id"`
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies"`
	ContentHash  string   `json:"contentHash"`
}

// TestSuite is one unit of test code, keyed by its path.
type TestSuite struct {
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies"`
	ContentHash  string   `json:"contentHash"`
}

// NewModule validates and normalizes a module record. Dependencies are
// de-duplicated and sorted; an empty id is rejected.
func NewModule(id, path string, deps []string, contentHash string) (Module, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Module{}, fmt.Errorf("module declared in %q has an empty id", path)
	}
	return Module{
		ID:           id,
		Path:         path,
		Dependencies: normalizeDeps(deps),
		ContentHash:  contentHash,
	}, nil
}

// NewTestSuite validates and normalizes a test suite record.
func NewTestSuite(path string, deps []string, contentHash string) (TestSuite, error) {
	if strings.TrimSpace(path) == "" {
		return TestSuite{}, fmt.Errorf("test suite has an empty path")
	}
	return TestSuite{
		Path:         path,
		Dependencies: normalizeDeps(deps),
		ContentHash:  contentHash,
	}, nil
}

// DependsOn reports whether the module lists id as a dependency.
func (m Module) DependsOn(id string) bool {
	return containsSorted(m.Dependencies, id)
}

// DependsOn reports whether the suite lists id as a dependency.
func (s TestSuite) DependsOn(id string) bool {
	return containsSorted(s.Dependencies, id)
}

// Key returns the module's map key.
func (m Module) Key() string { return m.ID }

// Hash returns the module's content hash.
func (m Module) Hash() string { return m.ContentHash }

// Location returns the path the module was declared in.
func (m Module) Location() string { return m.Path }

// Key returns the suite's map key.
func (s TestSuite) Key() string { return s.Path }

// Hash returns the suite's content hash.
func (s TestSuite) Hash() string { return s.ContentHash }

// Location returns the suite's path.
func (s TestSuite) Location() string { return s.Path }

// Project is a snapshot of a codebase at one point in time.
type Project struct {
	Modules    map[string]Module    `json:"modules"`
	TestSuites map[string]TestSuite `json:"testSuites"`
}

// Empty returns a project with no modules and no test suites.
func Empty() *Project {
	return &Project{
		Modules:    map[string]Module{},
		TestSuites: map[string]TestSuite{},
	}
}

// Module looks up a module by id.
func (p *Project) Module(id string) (Module, bool) {
	if p == nil {
		return Module{}, false
	}
	m, ok := p.Modules[id]
	return m, ok
}

// TestSuite looks up a test suite by path.
func (p *Project) TestSuite(path string) (TestSuite, bool) {
	if p == nil {
		return TestSuite{}, false
	}
	s, ok := p.TestSuites[path]
	return s, ok
}

// ModuleIDs returns all module ids in sorted order.
func (p *Project) ModuleIDs() []string {
	if p == nil {
		return nil
	}
	return sortedKeys(p.Modules)
}

// TestSuitePaths returns all test suite paths in sorted order.
func (p *Project) TestSuitePaths() []string {
	if p == nil {
		return nil
	}
	return sortedKeys(p.TestSuites)
}

// DanglingDependencies lists dependency ids that no module in the project
// defines, with the keys of the records that reference them.
func (p *Project) DanglingDependencies() map[string][]string {
	out := map[string][]string{}
	if p == nil {
		return out
	}
	for _, id := range p.ModuleIDs() {
		for _, dep := range p.Modules[id].Dependencies {
			if _, ok := p.Modules[dep]; !ok {
				out[dep] = append(out[dep], id)
			}
		}
	}
	for _, path := range p.TestSuitePaths() {
		for _, dep := range p.TestSuites[path].Dependencies {
			if _, ok := p.Modules[dep]; !ok {
				out[dep] = append(out[dep], path)
			}
		}
	}
	return out
}

func normalizeDeps(deps []string) []string {
	seen := make(map[string]struct{}, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func containsSorted(sorted []string, id string) bool {
	i := sort.SearchStrings(sorted, id)
	return i < len(sorted) && sorted[i] == id
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
