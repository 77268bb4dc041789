// Package engine runs the selection pipeline: extract the current project,
// load the baseline, diff, select impacted test suites, execute them and
// persist the new baseline.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"retrospec/internal/config"
	"retrospec/internal/errors"
	"retrospec/internal/execute"
	"retrospec/internal/extract"
	"retrospec/internal/hashing"
	"retrospec/internal/metrics"
	"retrospec/internal/paths"
	"retrospec/internal/scan"
	"retrospec/internal/slogutil"
	"retrospec/internal/snapshot"
)

// Options carries the collaborators an Engine does not build itself.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
	// Stdout receives test runner output and the list executor's paths.
	Stdout io.Writer
	// Cache is reused across engines in watch mode; nil creates one sized by
	// extraction.cacheSize.
	Cache *scan.Cache
	// Store replaces the configured snapshot backend.
	Store snapshot.Backend
	// Extractors and Executors replace the built-in registries.
	Extractors *extract.Registry
	Executors  *execute.Registry
}

// Engine is one configured project. It is safe to call Analyze and Run
// repeatedly; runs are not meant to overlap.
type Engine struct {
	cfg     *config.Config
	root    string
	srcDir  string
	testDir string
	workDir string

	hasher   hashing.Hasher
	modules  extract.ModuleExtractor
	suites   extract.TestSuiteExtractor
	executor execute.Executor
	store    snapshot.Backend
	cache    *scan.Cache

	logger  *slog.Logger
	metrics *metrics.Registry
	stdout  io.Writer
}

// New validates cfg and resolves every collaborator it names. Unknown
// extractor or executor ids fail here, before any file is read.
func New(cfg *config.Config, root string, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid configuration", err)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New(errors.InternalError, "resolve project root", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	alg, err := hashing.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "hashAlgorithm", err)
	}
	hasher, err := hashing.New(alg)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "hashAlgorithm", err)
	}

	e := &Engine{
		cfg:     cfg,
		root:    root,
		srcDir:  paths.Resolve(root, cfg.Src.Path),
		testDir: paths.Resolve(root, cfg.Test.Path),
		workDir: root,
		hasher:  hasher,
		logger:  logger,
		metrics: opts.Metrics,
		stdout:  stdout,
	}
	if cfg.Test.WorkDir != "" {
		e.workDir = paths.Resolve(root, cfg.Test.WorkDir)
	}

	rjs, err := e.requireJSOptions()
	if err != nil {
		return nil, err
	}

	extractors := opts.Extractors
	if extractors == nil {
		extractors = extract.NewRegistry(extract.Options{RequireJS: rjs, Hasher: hasher, Logger: logger})
	}
	if e.modules, err = extractors.ModuleExtractor(cfg.Src.Extractor); err != nil {
		return nil, err
	}
	if e.suites, err = extractors.TestSuiteExtractor(cfg.Test.Extractor); err != nil {
		return nil, err
	}

	executors := opts.Executors
	if executors == nil {
		executors = execute.NewRegistry()
	}
	e.executor, err = executors.Executor(cfg.Test.Executor, e.executeOptions())
	if err != nil {
		return nil, err
	}

	e.cache = opts.Cache
	if e.cache == nil {
		if e.cache, err = scan.NewCache(cfg.Extraction.CacheSize); err != nil {
			return nil, errors.New(errors.ConfigInvalid, "extraction.cacheSize", err)
		}
	}

	e.store = opts.Store
	if e.store == nil {
		e.store, err = snapshot.Open(root, snapshot.Options{
			Backend:      cfg.Snapshot.Backend,
			Compress:     cfg.Snapshot.Compress,
			HistoryLimit: cfg.Snapshot.HistoryLimit,
			Logger:       logger,
		})
		if err != nil {
			if errors.CodeOf(err) == errors.InternalError {
				return nil, errors.New(errors.SnapshotReadFailed, "open snapshot store", err)
			}
			return nil, err
		}
	}

	logger.Debug("engine ready",
		"root", root,
		"src", e.srcDir,
		"test", e.testDir,
		"moduleExtractor", e.modules.ID(),
		"testSuiteExtractor", e.suites.ID(),
		"executor", e.executor.ID(),
		"store", e.store.Location(),
	)
	return e, nil
}

// requireJSOptions merges src.requirejs with the loader config file it
// points at. Explicit baseUrl and path aliases win over the file.
func (e *Engine) requireJSOptions() (extract.RequireJSOptions, error) {
	rc := e.cfg.Src.RequireJS
	opts := extract.RequireJSOptions{Paths: map[string]string{}}

	if rc.ConfigFile != "" {
		file := paths.Resolve(e.root, rc.ConfigFile)
		content, err := os.ReadFile(file)
		if err != nil {
			return opts, errors.New(errors.ConfigInvalid, fmt.Sprintf("src.requirejs.configFile: %s", file), err)
		}
		parsed, found, err := extract.ParseRequireJSConfig(context.Background(), content)
		if err != nil {
			return opts, errors.New(errors.ConfigInvalid, fmt.Sprintf("src.requirejs.configFile: parse %s", file), err)
		}
		if !found {
			e.logger.Warn("no require.config call found", "path", file)
		}
		opts.BaseURL = parsed.BaseURL
		for k, v := range parsed.Paths {
			opts.Paths[k] = v
		}
	}

	if rc.BaseURL != "" {
		opts.BaseURL = rc.BaseURL
	}
	for k, v := range rc.Paths {
		opts.Paths[k] = v
	}
	return opts, nil
}

func (e *Engine) executeOptions() execute.Options {
	return execute.Options{
		TestDir:       e.testDir,
		WorkDir:       e.workDir,
		Command:       e.cfg.Test.Command,
		KarmaTemplate: e.cfg.Test.KarmaTemplate,
		Stdout:        e.stdout,
		Logger:        e.logger,
	}
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Root returns the absolute project root.
func (e *Engine) Root() string { return e.root }

// SourceDir returns the absolute directory modules are extracted from.
func (e *Engine) SourceDir() string { return e.srcDir }

// TestDir returns the absolute directory test suites are extracted from.
func (e *Engine) TestDir() string { return e.testDir }

// Store returns the snapshot backend.
func (e *Engine) Store() snapshot.Backend { return e.store }

// Cache returns the extraction cache, for reuse by a later engine.
func (e *Engine) Cache() *scan.Cache { return e.cache }

// Executor returns the configured test executor.
func (e *Engine) Executor() execute.Executor { return e.executor }

// Close releases the snapshot backend.
func (e *Engine) Close() error {
	return e.store.Close()
}
