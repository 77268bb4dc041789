// Package scan discovers source and test files, runs an extractor over each
// one concurrently and collects the records in a deterministic order. A
// file that cannot be read or parsed is logged and skipped; only duplicate
// definitions and cancellation abort a scan.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"retrospec/internal/errors"
	"retrospec/internal/extract"
	"retrospec/internal/hashing"
	"retrospec/internal/project"
	"retrospec/internal/slogutil"
)

// Scanner walks one directory.
type Scanner struct {
	// Root is the directory patterns are matched against; record paths are
	// relative to it.
	Root string
	// Patterns are doublestar globs. A pattern starting with "!" excludes.
	Patterns []string
	Exclude  []string
	// Workers bounds concurrent extraction; zero means runtime.NumCPU().
	Workers int
	// MaxFileSize skips larger files; zero disables the limit.
	MaxFileSize int64
	Hasher      hashing.Hasher
	Cache       *Cache
	Logger      *slog.Logger
}

// SkippedFile is a file that contributed nothing to the snapshot.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarizes one scan.
type Report struct {
	Extractor string        `json:"extractor"`
	Files     int           `json:"files"`
	Records   int           `json:"records"`
	CacheHits int           `json:"cacheHits"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slogutil.NewDiscardLogger()
	}
	return s.Logger
}

func (s *Scanner) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

func (s *Scanner) patterns() (include, exclude []string) {
	exclude = append(exclude, s.Exclude...)
	for _, p := range s.Patterns {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "!") {
			exclude = append(exclude, strings.TrimPrefix(p[1:], "./"))
			continue
		}
		if p != "" {
			include = append(include, strings.TrimPrefix(p, "./"))
		}
	}
	return include, exclude
}

// Discover returns the matching files relative to Root, sorted, with
// forward slashes.
func (s *Scanner) Discover(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, errors.New(errors.ExtractionFailed, fmt.Sprintf("cannot scan %s", s.Root), err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ExtractionFailed, fmt.Sprintf("%s is not a directory", s.Root), nil)
	}

	include, exclude := s.patterns()
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.New(errors.ConfigInvalid, fmt.Sprintf("invalid glob pattern %q", p), nil)
		}
	}

	fsys := os.DirFS(s.Root)
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range include {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.New(errors.ExtractionFailed, fmt.Sprintf("glob %q in %s", pattern, s.Root), err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok || excluded(exclude, m) {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func excluded(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// ScanModules extracts modules from every discovered file.
func (s *Scanner) ScanModules(ctx context.Context, ex extract.ModuleExtractor) ([]project.Module, *Report, error) {
	var c cacheOf[project.Module]
	if s.Cache != nil {
		c = s.Cache.modules
	}
	return run(ctx, s, ex.ID(), c, ex.ExtractModules)
}

// ScanTestSuites extracts test suites from every discovered file.
func (s *Scanner) ScanTestSuites(ctx context.Context, ex extract.TestSuiteExtractor) ([]project.TestSuite, *Report, error) {
	var c cacheOf[project.TestSuite]
	if s.Cache != nil {
		c = s.Cache.suites
	}
	return run(ctx, s, ex.ID(), c, ex.ExtractTestSuites)
}

type cacheOf[T any] interface {
	Get(key uint64) ([]T, bool)
	Add(key uint64, value []T) bool
}

func run[T any](
	ctx context.Context,
	s *Scanner,
	extractorID string,
	cache cacheOf[T],
	extractFn func(context.Context, extract.File) ([]T, error),
) ([]T, *Report, error) {
	files, err := s.Discover(ctx)
	if err != nil {
		return nil, nil, err
	}

	log := s.logger()
	report := &Report{Extractor: extractorID, Files: len(files)}
	results := make([][]T, len(files))

	var mu sync.Mutex
	skip := func(path, reason string, err error) {
		args := []any{"path", path, "extractor", extractorID, "reason", reason}
		if err != nil {
			args = append(args, "error", err)
		}
		log.Warn("skipping file", args...)
		mu.Lock()
		report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: reason})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			abs := filepath.Join(s.Root, filepath.FromSlash(rel))
			if s.MaxFileSize > 0 {
				if info, err := os.Stat(abs); err == nil && info.Size() > s.MaxFileSize {
					skip(rel, fmt.Sprintf("larger than %d bytes", s.MaxFileSize), nil)
					return nil
				}
			}

			content, err := os.ReadFile(abs)
			if err != nil {
				if os.IsNotExist(err) {
					// removed between discovery and read
					skip(rel, "file disappeared", err)
					return nil
				}
				skip(rel, "read failed", err)
				return nil
			}

			var key uint64
			if cache != nil {
				key = cacheKey(rel, extractorID, string(s.Hasher.Algorithm()), content)
				if recs, ok := cache.Get(key); ok {
					results[i] = recs
					mu.Lock()
					report.CacheHits++
					mu.Unlock()
					return nil
				}
			}

			f := extract.File{Path: rel, Content: content, Hash: s.Hasher.Sum(content)}
			recs, err := extractFn(gctx, f)
			if err != nil {
				if extract.IsFatal(err) {
					return err
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				skip(rel, "extraction failed", err)
				return nil
			}

			results[i] = recs
			if cache != nil {
				cache.Add(key, recs)
			}
			log.Debug("extracted", "path", rel, "extractor", extractorID, "records", len(recs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []T
	for _, recs := range results {
		out = append(out, recs...)
	}
	report.Records = len(out)
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Path < report.Skipped[j].Path })
	return out, report, nil
}
