// Package extract turns file contents into module and test-suite records.
// Extractors are looked up by id in a Registry; each one is stateless
// apart from its Options and safe for concurrent use.
package extract

import (
	"context"
	"errors"
	"log/slog"

	"retrospec/internal/hashing"
	"retrospec/internal/jsast"
	"retrospec/internal/project"
	"retrospec/internal/slogutil"
)

// File is one input handed to an extractor. Path is relative to the
// configured source or test directory and uses forward slashes; Hash is the
// configured digest of Content.
type File struct {
	Path    string
	Content []byte
	Hash    string
}

// ModuleExtractor finds module definitions in a source file.
type ModuleExtractor interface {
	ID() string
	ExtractModules(ctx context.Context, f File) ([]project.Module, error)
}

// TestSuiteExtractor finds test suites in a test file.
type TestSuiteExtractor interface {
	ID() string
	ExtractTestSuites(ctx context.Context, f File) ([]project.TestSuite, error)
}

// Options configures the built-in extractors.
type Options struct {
	RequireJS RequireJSOptions
	Hasher    hashing.Hasher
	Logger    *slog.Logger
}

// RequireJSOptions mirrors the subset of a RequireJS loader config that
// affects module ids.
type RequireJSOptions struct {
	BaseURL string
	Paths   map[string]string
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slogutil.NewDiscardLogger()
	}
	return o.Logger
}

// IsFatal reports whether an extraction error must abort the whole scan
// instead of skipping the file.
func IsFatal(err error) bool {
	var dm *project.DuplicateModuleError
	var dt *project.DuplicateTestSuiteError
	return errors.As(err, &dm) || errors.As(err, &dt) || errors.Is(err, jsast.ErrNoCGO)
}

// checkUnique fails when two modules from one file share an id.
func checkUnique(path string, modules []project.Module) error {
	seen := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		if _, ok := seen[m.ID]; ok {
			return &project.DuplicateModuleError{ID: m.ID, Paths: []string{path, path}}
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
