package extract

import (
	"context"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"retrospec/internal/project"
)

const (
	TOMLDeclarationID = "toml-declaration"
	YAMLDeclarationID = "yaml-declaration"
)

// TOMLDeclarationExtractor reads hand-written module declarations for code
// no parser understands:
//
//	[[module]]
//	id = "billing"
//	path = "billing/index.js"
//	dependencies = ["core", "http"]
type TOMLDeclarationExtractor struct {
	opts Options
}

type tomlDeclarations struct {
	Module []struct {
		ID           string   `toml:"id"`
		Path         string   `toml:"path"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"module"`
}

func NewTOMLDeclarationExtractor(opts Options) *TOMLDeclarationExtractor {
	return &TOMLDeclarationExtractor{opts: opts}
}

func (e *TOMLDeclarationExtractor) ID() string { return TOMLDeclarationID }

func (e *TOMLDeclarationExtractor) ExtractModules(_ context.Context, f File) ([]project.Module, error) {
	var doc tomlDeclarations
	if err := toml.Unmarshal(f.Content, &doc); err != nil {
		return nil, fmt.Errorf("decode module declarations: %w", err)
	}

	modules := make([]project.Module, 0, len(doc.Module))
	for i, d := range doc.Module {
		p := d.Path
		if p == "" {
			p = f.Path
		}
		m, err := project.NewModule(d.ID, p, d.Dependencies, f.Hash)
		if err != nil {
			return nil, fmt.Errorf("module #%d: %w", i+1, err)
		}
		modules = append(modules, m)
	}

	if err := checkUnique(f.Path, modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// YAMLDeclarationExtractor reads test suites declared in YAML:
//
//	suites:
//	  - path: e2e/checkout.html
//	    dependencies: [billing, cart]
//
// An entry without a path names the declaration file itself.
type YAMLDeclarationExtractor struct {
	opts Options
}

type yamlDeclarations struct {
	Suites []struct {
		Path         string   `yaml:"path"`
		Dependencies []string `yaml:"dependencies"`
	} `yaml:"suites"`
}

func NewYAMLDeclarationExtractor(opts Options) *YAMLDeclarationExtractor {
	return &YAMLDeclarationExtractor{opts: opts}
}

func (e *YAMLDeclarationExtractor) ID() string { return YAMLDeclarationID }

func (e *YAMLDeclarationExtractor) ExtractTestSuites(_ context.Context, f File) ([]project.TestSuite, error) {
	var doc yamlDeclarations
	if err := yaml.Unmarshal(f.Content, &doc); err != nil {
		return nil, fmt.Errorf("decode suite declarations: %w", err)
	}

	suites := make([]project.TestSuite, 0, len(doc.Suites))
	for _, d := range doc.Suites {
		p := d.Path
		if p == "" {
			p = f.Path
		}
		s, err := project.NewTestSuite(p, d.Dependencies, f.Hash)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}
