package extract

import (
	"context"
	"fmt"

	"retrospec/internal/jsast"
	"retrospec/internal/project"
)

const (
	AngularModuleID = "angular-module"
	AngularKarmaID  = "angular-karma"
)

// AngularModuleExtractor reads angular.module('name', [deps]) definitions.
// Lookups of the form angular.module('name') are not definitions and are
// ignored.
type AngularModuleExtractor struct {
	opts Options
}

func NewAngularModuleExtractor(opts Options) *AngularModuleExtractor {
	return &AngularModuleExtractor{opts: opts}
}

func (e *AngularModuleExtractor) ID() string { return AngularModuleID }

func (e *AngularModuleExtractor) ExtractModules(ctx context.Context, f File) ([]project.Module, error) {
	src, err := jsast.Parse(ctx, f.Content)
	if err != nil {
		return nil, err
	}

	var modules []project.Module
	for _, c := range src.CallsTo("angular.module") {
		if len(c.Args) < 2 || c.Args[0].Kind != jsast.KindString || c.Args[1].Kind != jsast.KindArray {
			continue
		}
		m, err := project.NewModule(c.Args[0].Str, f.Path, c.Args[1].Strings(), f.Hash)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", c.Line, err)
		}
		modules = append(modules, m)
	}

	if err := checkUnique(f.Path, modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// AngularKarmaExtractor treats every file as one suite whose dependencies
// are the modules loaded with module('name') in its specs.
type AngularKarmaExtractor struct {
	opts Options
}

func NewAngularKarmaExtractor(opts Options) *AngularKarmaExtractor {
	return &AngularKarmaExtractor{opts: opts}
}

func (e *AngularKarmaExtractor) ID() string { return AngularKarmaID }

func (e *AngularKarmaExtractor) ExtractTestSuites(ctx context.Context, f File) ([]project.TestSuite, error) {
	src, err := jsast.Parse(ctx, f.Content)
	if err != nil {
		return nil, err
	}

	var deps []string
	for _, c := range src.CallsTo("module") {
		if len(c.Args) == 0 || c.Args[0].Kind != jsast.KindString || c.Args[0].Str == "" {
			continue
		}
		deps = append(deps, c.Args[0].Str)
	}

	// A spec file without module() calls still runs; keep it selectable on
	// its own edits.
	suite, err := project.NewTestSuite(f.Path, uniqueStrings(deps), f.Hash)
	if err != nil {
		return nil, err
	}
	return []project.TestSuite{suite}, nil
}
