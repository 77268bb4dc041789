package scan

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrospec/internal/errors"
	"retrospec/internal/extract"
	"retrospec/internal/project"
	"retrospec/internal/slogutil"
)

// lineExtractor reads "id: dep dep" lines; a line "!fail" makes the file
// unparseable and "!dup" reports a duplicate definition.
type lineExtractor struct {
	calls atomic.Int32
}

func (e *lineExtractor) ID() string { return "lines" }

func (e *lineExtractor) ExtractModules(_ context.Context, f extract.File) ([]project.Module, error) {
	e.calls.Add(1)
	var out []project.Module
	for _, line := range strings.Split(strings.TrimSpace(string(f.Content)), "\n") {
		switch line {
		case "":
			continue
		case "!fail":
			return nil, fmt.Errorf("cannot parse %s", f.Path)
		case "!dup":
			return nil, &project.DuplicateModuleError{ID: "dup", Paths: []string{f.Path, f.Path}}
		}
		id, deps, _ := strings.Cut(line, ":")
		m, err := project.NewModule(id, f.Path, strings.Fields(deps), f.Hash)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type suiteExtractor struct{}

func (suiteExtractor) ID() string { return "suites" }

func (suiteExtractor) ExtractTestSuites(_ context.Context, f extract.File) ([]project.TestSuite, error) {
	s, err := project.NewTestSuite(f.Path, strings.Fields(string(f.Content)), f.Hash)
	if err != nil {
		return nil, err
	}
	return []project.TestSuite{s}, nil
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.js":             "",
		"lib/b.js":         "",
		"lib/b.spec.js":    "",
		"vendor/c.js":      "",
		"README.md":        "",
		"lib/deep/d/e.js":  "",
		"lib/deep/d/f.txt": "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.js"), 0755))

	s := &Scanner{
		Root:     root,
		Patterns: []string{"**/*.js", "./lib/**/*.js", "!**/*.spec.js"},
		Exclude:  []string{"vendor/**"},
	}
	got, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "lib/b.js", "lib/deep/d/e.js"}, got)
}

func TestDiscoverMissingRoot(t *testing.T) {
	s := &Scanner{Root: filepath.Join(t.TempDir(), "missing"), Patterns: []string{"**/*.js"}}
	_, err := s.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ExtractionFailed))
}

func TestDiscoverInvalidPattern(t *testing.T) {
	s := &Scanner{Root: t.TempDir(), Patterns: []string{"[a-"}}
	_, err := s.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ConfigInvalid))
}

func TestScanModulesSkipsBadFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.mod":   "a: b c\n",
		"b.mod":   "b:\n",
		"bad.mod": "!fail\n",
		"big.mod": "big: " + strings.Repeat("x", 200) + "\n",
	})

	var logs bytes.Buffer
	s := &Scanner{
		Root:        root,
		Patterns:    []string{"*.mod"},
		Workers:     2,
		MaxFileSize: 100,
		Logger:      slogutil.NewLogger(&logs, slog.LevelDebug),
	}
	mods, report, err := s.ScanModules(context.Background(), &lineExtractor{})
	require.NoError(t, err)

	require.Len(t, mods, 2)
	assert.Equal(t, "a", mods[0].ID)
	assert.Equal(t, []string{"b", "c"}, mods[0].Dependencies)
	assert.NotEmpty(t, mods[0].ContentHash)
	assert.Equal(t, "b", mods[1].ID)

	assert.Equal(t, 4, report.Files)
	assert.Equal(t, 2, report.Records)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "bad.mod", report.Skipped[0].Path)
	assert.Equal(t, "big.mod", report.Skipped[1].Path)

	assert.Contains(t, logs.String(), "path=bad.mod")
	assert.Contains(t, logs.String(), "extractor=lines")
}

func TestScanModulesDuplicateAborts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.mod": "a:\n",
		"d.mod": "!dup\n",
	})

	s := &Scanner{Root: root, Patterns: []string{"*.mod"}}
	_, _, err := s.ScanModules(context.Background(), &lineExtractor{})
	var dup *project.DuplicateModuleError
	require.ErrorAs(t, err, &dup)
}

func TestScanModulesCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.mod": "a:\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Scanner{Root: root, Patterns: []string{"*.mod"}}
	_, _, err := s.ScanModules(ctx, &lineExtractor{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScanDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("m%02d.mod", i)] = fmt.Sprintf("m%02d:\n", i)
	}
	writeFiles(t, root, files)

	s := &Scanner{Root: root, Patterns: []string{"*.mod"}, Workers: 8}
	mods, _, err := s.ScanModules(context.Background(), &lineExtractor{})
	require.NoError(t, err)
	require.Len(t, mods, 40)
	for i, m := range mods {
		assert.Equal(t, fmt.Sprintf("m%02d", i), m.ID)
	}
}

func TestScanCache(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.mod": "a: b\n",
		"b.mod": "b:\n",
	})

	cache, err := NewCache(16)
	require.NoError(t, err)
	ex := &lineExtractor{}
	s := &Scanner{Root: root, Patterns: []string{"*.mod"}, Cache: cache}

	_, report, err := s.ScanModules(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, 0, report.CacheHits)
	assert.Equal(t, int32(2), ex.calls.Load())

	writeFiles(t, root, map[string]string{"b.mod": "b: c\n"})

	mods, report, err := s.ScanModules(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CacheHits)
	assert.Equal(t, int32(3), ex.calls.Load())
	assert.Equal(t, []string{"c"}, mods[1].Dependencies)
	assert.Equal(t, 3, cache.Len())
}

func TestScanTestSuites(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"unit/a.test": "a b",
		"unit/b.test": "",
	})

	s := &Scanner{Root: root, Patterns: []string{"**/*.test"}}
	suites, report, err := s.ScanTestSuites(context.Background(), suiteExtractor{})
	require.NoError(t, err)
	require.Len(t, suites, 2)
	assert.Equal(t, "unit/a.test", suites[0].Path)
	assert.Equal(t, []string{"a", "b"}, suites[0].Dependencies)
	assert.Empty(t, suites[1].Dependencies)
	assert.Equal(t, "suites", report.Extractor)
}

func TestCacheKeyDistinguishesInputs(t *testing.T) {
	base := cacheKey("a.js", "x", "sha1", []byte("content"))
	assert.Equal(t, base, cacheKey("a.js", "x", "sha1", []byte("content")))
	assert.NotEqual(t, base, cacheKey("b.js", "x", "sha1", []byte("content")))
	assert.NotEqual(t, base, cacheKey("a.js", "y", "sha1", []byte("content")))
	assert.NotEqual(t, base, cacheKey("a.js", "x", "sha256", []byte("content")))
	assert.NotEqual(t, base, cacheKey("a.js", "x", "sha1", []byte("other")))
}
