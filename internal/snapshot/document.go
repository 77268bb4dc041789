package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"

	"retrospec/internal/project"
)

// DocumentVersion is written into every JSON snapshot.
const DocumentVersion = 1

type document struct {
	Version    int                          `json:"version"`
	Modules    map[string]project.Module    `json:"modules"`
	TestSuites map[string]project.TestSuite `json:"testSuites"`
}

// record accepts both the current field names and the legacy ones
// (moduleMap/testSuiteMap entries carrying "hash").
type record struct {
	ID           string   `json:"id"`
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies"`
	ContentHash  string   `json:"contentHash"`
	Hash         string   `json:"hash"`
}

func (r record) hash() string {
	if r.ContentHash != "" {
		return r.ContentHash
	}
	return r.Hash
}

type rawDocument struct {
	Version      int               `json:"version"`
	Modules      map[string]record `json:"modules"`
	TestSuites   map[string]record `json:"testSuites"`
	ModuleMap    map[string]record `json:"moduleMap"`
	TestSuiteMap map[string]record `json:"testSuiteMap"`
}

// Encode renders p as a snapshot document.
func Encode(p *project.Project) ([]byte, error) {
	if p == nil {
		p = project.Empty()
	}
	doc := document{
		Version:    DocumentVersion,
		Modules:    p.Modules,
		TestSuites: p.TestSuites,
	}
	if doc.Modules == nil {
		doc.Modules = map[string]project.Module{}
	}
	if doc.TestSuites == nil {
		doc.TestSuites = map[string]project.TestSuite{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot document in the current or legacy layout and
// re-validates it through project.Build.
func Decode(data []byte) (*project.Project, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if raw.Version > DocumentVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", raw.Version, DocumentVersion)
	}

	modules := raw.Modules
	if modules == nil {
		modules = raw.ModuleMap
	}
	suites := raw.TestSuites
	if suites == nil {
		suites = raw.TestSuiteMap
	}

	ms := make([]project.Module, 0, len(modules))
	for _, key := range sortedKeys(modules) {
		r := modules[key]
		id := r.ID
		if id == "" {
			id = key
		}
		if id != key {
			return nil, fmt.Errorf("snapshot module %q is stored under key %q", id, key)
		}
		ms = append(ms, project.Module{ID: id, Path: r.Path, Dependencies: r.Dependencies, ContentHash: r.hash()})
	}

	ts := make([]project.TestSuite, 0, len(suites))
	for _, key := range sortedKeys(suites) {
		r := suites[key]
		path := r.Path
		if path == "" {
			path = key
		}
		if path != key {
			return nil, fmt.Errorf("snapshot test suite %q is stored under key %q", path, key)
		}
		ts = append(ts, project.TestSuite{Path: path, Dependencies: r.Dependencies, ContentHash: r.hash()})
	}

	p, err := project.Build(ms, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return p, nil
}

func sortedKeys(m map[string]record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
