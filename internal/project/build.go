package project

import (
	"fmt"
	"strings"
)

// DuplicateModuleError reports a module id defined by more than one record.
type DuplicateModuleError struct {
	ID    string
	Paths []string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %q is defined more than once (%s)", e.ID, strings.Join(e.Paths, ", "))
}

// DuplicateTestSuiteError reports two records for one test path whose
// content hashes disagree.
type DuplicateTestSuiteError struct {
	Path   string
	Hashes []string
}

func (e *DuplicateTestSuiteError) Error() string {
	return fmt.Sprintf("test suite %q has conflicting records (hashes %s)", e.Path, strings.Join(e.Hashes, ", "))
}

// Build indexes extracted records into a Project. Modules are keyed by id
// and test suites by path. A module id seen twice is an error: selection
// would otherwise run against whichever definition happened to win.
// Several records for one test path (a file declaring more than one suite)
// are merged when they agree on the content hash.
func Build(modules []Module, testSuites []TestSuite) (*Project, error) {
	p := &Project{
		Modules:    make(map[string]Module, len(modules)),
		TestSuites: make(map[string]TestSuite, len(testSuites)),
	}

	for _, m := range modules {
		if strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("module declared in %q has an empty id", m.Path)
		}
		if prev, ok := p.Modules[m.ID]; ok {
			return nil, &DuplicateModuleError{ID: m.ID, Paths: []string{prev.Path, m.Path}}
		}
		m.Dependencies = normalizeDeps(m.Dependencies)
		p.Modules[m.ID] = m
	}

	for _, s := range testSuites {
		if strings.TrimSpace(s.Path) == "" {
			return nil, fmt.Errorf("test suite has an empty path")
		}
		if prev, ok := p.TestSuites[s.Path]; ok {
			if prev.ContentHash != s.ContentHash {
				return nil, &DuplicateTestSuiteError{Path: s.Path, Hashes: []string{prev.ContentHash, s.ContentHash}}
			}
			s.Dependencies = append(append([]string{}, prev.Dependencies...), s.Dependencies...)
		}
		s.Dependencies = normalizeDeps(s.Dependencies)
		p.TestSuites[s.Path] = s
	}

	return p, nil
}
