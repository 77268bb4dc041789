package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"retrospec/internal/diff"
	"retrospec/internal/errors"
	"retrospec/internal/execute"
	"retrospec/internal/impact"
	"retrospec/internal/metrics"
	"retrospec/internal/paths"
	"retrospec/internal/project"
	"retrospec/internal/runlock"
	"retrospec/internal/scan"
	"retrospec/internal/snapshot"
)

// BuildReport describes the two scanner passes of a build.
type BuildReport struct {
	Modules    *scan.Report `json:"modules"`
	TestSuites *scan.Report `json:"testSuites"`
}

// Analysis is everything known before tests run.
type Analysis struct {
	Current       *project.Project  `json:"-"`
	Baseline      *project.Project  `json:"-"`
	BaselineFound bool              `json:"baselineFound"`
	Diff          *diff.Result      `json:"diff"`
	Selection     *impact.Selection `json:"selection"`
	FirstRun      bool              `json:"firstRun"`
	Report        *BuildReport      `json:"report"`
}

// RunOptions controls Run.
type RunOptions struct {
	// Reset discards the baseline first, so every test suite is selected.
	Reset bool
	// Save persists the current snapshot once the selected tests pass.
	Save bool
	// DryRun lists the selection instead of executing it, and never saves.
	DryRun bool
}

// RunResult is the outcome of Run.
type RunResult struct {
	Analysis  *Analysis       `json:"analysis"`
	Tests     []string        `json:"tests"`
	Execution *execute.Result `json:"execution,omitempty"`
	Run       snapshot.Run    `json:"run"`
}

func (e *Engine) scanner(root string, patterns, exclude []string) *scan.Scanner {
	return &scan.Scanner{
		Root:        root,
		Patterns:    patterns,
		Exclude:     exclude,
		Workers:     e.cfg.Extraction.Workers,
		MaxFileSize: e.cfg.Extraction.MaxFileSize,
		Hasher:      e.hasher,
		Cache:       e.cache,
		Logger:      e.logger,
	}
}

// Build extracts the current project from the source and test directories.
// The two directories are scanned concurrently.
func (e *Engine) Build(ctx context.Context) (*project.Project, *BuildReport, error) {
	var (
		modules []project.Module
		suites  []project.TestSuite
		report  BuildReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		modules, report.Modules, err = e.scanner(e.srcDir, e.cfg.Src.Patterns, e.cfg.Src.Exclude).ScanModules(gctx, e.modules)
		return err
	})
	g.Go(func() error {
		var err error
		suites, report.TestSuites, err = e.scanner(e.testDir, e.cfg.Test.Patterns, e.cfg.Test.Exclude).ScanTestSuites(gctx, e.suites)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, classify(err)
	}

	e.metrics.ObserveScan(metrics.KindModule, report.Modules.Files, len(report.Modules.Skipped), report.Modules.CacheHits)
	e.metrics.ObserveScan(metrics.KindTestSuite, report.TestSuites.Files, len(report.TestSuites.Skipped), report.TestSuites.CacheHits)

	p, err := project.Build(modules, suites)
	if err != nil {
		return nil, nil, classify(err)
	}

	e.logger.Info("extracted project",
		"modules", len(p.Modules),
		"testSuites", len(p.TestSuites),
		"skipped", len(report.Modules.Skipped)+len(report.TestSuites.Skipped),
	)
	return p, &report, nil
}

// Analyze builds the current project and selects the test suites affected
// by its differences from the baseline. Without a baseline every test suite
// is selected.
func (e *Engine) Analyze(ctx context.Context) (*Analysis, error) {
	current, report, err := e.Build(ctx)
	if err != nil {
		return nil, err
	}

	baseline, found, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		e.logger.Info("no baseline snapshot, selecting every test suite", "store", e.store.Location())
		baseline = nil
	}

	d := diff.Compare(baseline, current)
	sel := impact.Analyze(current, d)
	e.metrics.ObserveDiff(d)

	for dep, refs := range current.DanglingDependencies() {
		e.logger.Debug("unresolved dependency", "dependency", dep, "referencedBy", refs)
	}
	e.logger.Info("selected test suites",
		"selected", len(sel.Tests),
		"total", len(current.TestSuites),
		"seeds", len(sel.Seeds),
		"impactedModules", len(sel.ImpactedModules),
	)

	return &Analysis{
		Current:       current,
		Baseline:      baseline,
		BaselineFound: found,
		Diff:          d,
		Selection:     sel,
		FirstRun:      !found,
		Report:        report,
	}, nil
}

// Run performs a full selection run. The current snapshot is saved only
// when opts.Save is set and the selected tests passed (or none were
// selected), so a failing change stays selected next time. A save failure
// is reported after the tests have run; a test failure takes precedence.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	started := time.Now()
	res := &RunResult{Run: snapshot.NewRun(started)}

	lock, err := e.lock()
	if err != nil {
		return res, err
	}
	defer lock.Release()

	finish := func(outcome snapshot.Outcome) {
		res.Run.Outcome = outcome
		res.Run.Duration = time.Since(started)
		if err := e.store.RecordRun(context.WithoutCancel(ctx), res.Run); err != nil {
			e.logger.Warn("could not record run history", "error", err)
		}
		e.metrics.ObserveRun(res.Run.Modules, res.Run.Total, res.Run.Selected, string(outcome), res.Run.Duration)
	}

	if opts.Reset {
		if err := e.store.Reset(ctx); err != nil {
			finish(snapshot.OutcomeError)
			return res, err
		}
		e.logger.Info("baseline snapshot reset", "store", e.store.Location())
	}

	a, err := e.Analyze(ctx)
	if err != nil {
		finish(snapshot.OutcomeError)
		return res, err
	}
	res.Analysis = a
	res.Tests = a.Selection.Paths()
	res.Run.Selected = len(res.Tests)
	res.Run.Total = len(a.Current.TestSuites)
	res.Run.Modules = len(a.Current.Modules)

	var execErr error
	outcome := snapshot.OutcomePassed
	switch {
	case len(res.Tests) == 0:
		outcome = snapshot.OutcomeNoTests
		e.logger.Info("no test suites affected")
	case opts.DryRun:
		outcome = snapshot.OutcomeDryRun
		res.Execution, execErr = execute.NewList(e.executeOptions()).Execute(ctx, res.Tests)
	default:
		res.Execution, execErr = e.executor.Execute(ctx, res.Tests)
		if execErr != nil {
			outcome = snapshot.OutcomeFailed
			if ctx.Err() == nil {
				execErr = errors.New(errors.ExecutionFailed, fmt.Sprintf("%s reported failures", e.executor.ID()), execErr)
			}
		}
	}
	if execErr != nil {
		if outcome != snapshot.OutcomeFailed {
			outcome = snapshot.OutcomeError
		}
		finish(outcome)
		return res, execErr
	}

	var saveErr error
	if opts.Save && !opts.DryRun {
		if saveErr = e.store.Save(ctx, a.Current); saveErr == nil {
			res.Run.Saved = true
			e.logger.Info("saved baseline snapshot", "store", e.store.Location())
		}
	}

	if saveErr != nil {
		outcome = snapshot.OutcomeError
	}
	finish(outcome)
	return res, saveErr
}

// SaveCurrent builds the current project and stores it as the baseline
// without running anything.
func (e *Engine) SaveCurrent(ctx context.Context) (*project.Project, error) {
	lock, err := e.lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	p, _, err := e.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Baseline loads the stored snapshot.
func (e *Engine) Baseline(ctx context.Context) (*project.Project, bool, error) {
	return e.store.Load(ctx)
}

// Reset discards the stored snapshot.
func (e *Engine) Reset(ctx context.Context) error {
	lock, err := e.lock()
	if err != nil {
		return err
	}
	defer lock.Release()
	return e.store.Reset(ctx)
}

// lock serializes baseline updates across processes sharing a project.
func (e *Engine) lock() (*runlock.Lock, error) {
	lock, err := runlock.Acquire(paths.DataDirPath(e.root))
	if err != nil {
		if errors.Is(err, errors.Locked) {
			return nil, err
		}
		return nil, errors.New(errors.InternalError, "acquire run lock", err)
	}
	return lock, nil
}

// History returns up to limit past runs, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]snapshot.Run, error) {
	runs, err := e.store.Runs(ctx, limit)
	if err != nil {
		return nil, errors.New(errors.SnapshotReadFailed, "read run history", err)
	}
	return runs, nil
}

// classify gives scanner and builder failures their error codes.
func classify(err error) error {
	var dupModule *project.DuplicateModuleError
	var dupSuite *project.DuplicateTestSuiteError
	switch {
	case stderrors.As(err, &dupModule):
		return errors.New(errors.DuplicateModule, dupModule.Error(), err).WithDetails(dupModule)
	case stderrors.As(err, &dupSuite):
		return errors.New(errors.DuplicateTestSuite, dupSuite.Error(), err).WithDetails(dupSuite)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	case errors.CodeOf(err) != errors.InternalError:
		return err
	default:
		return errors.New(errors.ExtractionFailed, "extraction failed", err)
	}
}
