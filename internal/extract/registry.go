package extract

import (
	"fmt"
	"sort"
	"strings"

	"retrospec/internal/errors"
	"retrospec/internal/jsast"
)

// jsExtractors parse JavaScript with tree-sitter and are unusable in a
// build without cgo.
var jsExtractors = map[string]bool{
	AngularModuleID:   true,
	RequireJSModuleID: true,
	AngularKarmaID:    true,
	InlineCommentID:   true,
	JQMID:             true,
}

// ModuleFactory builds a module extractor for the given options.
type ModuleFactory func(Options) ModuleExtractor

// TestSuiteFactory builds a test-suite extractor for the given options.
type TestSuiteFactory func(Options) TestSuiteExtractor

// Registry maps extractor ids, including legacy aliases, to factories.
type Registry struct {
	opts    Options
	modules map[string]ModuleFactory
	suites  map[string]TestSuiteFactory
	aliases map[string]string
}

// NewRegistry returns a registry holding every built-in extractor.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:    opts,
		modules: make(map[string]ModuleFactory),
		suites:  make(map[string]TestSuiteFactory),
		aliases: make(map[string]string),
	}

	r.RegisterModule(AngularModuleID, func(o Options) ModuleExtractor { return NewAngularModuleExtractor(o) },
		"angular-module-extractor", "AngularJS")
	r.RegisterModule(RequireJSModuleID, func(o Options) ModuleExtractor { return NewRequireJSModuleExtractor(o) },
		"requirejs-module-extractor", "RequireJS")
	r.RegisterModule(TOMLDeclarationID, func(o Options) ModuleExtractor { return NewTOMLDeclarationExtractor(o) })
	r.RegisterModule(SCIPIndexID, func(o Options) ModuleExtractor { return NewSCIPModuleExtractor(o) })

	r.RegisterTestSuite(AngularKarmaID, func(o Options) TestSuiteExtractor { return NewAngularKarmaExtractor(o) },
		"angular-karma-test-suite-extractor")
	r.RegisterTestSuite(InlineCommentID, func(o Options) TestSuiteExtractor { return NewInlineCommentExtractor(o) },
		"inline-comment-test-suite-extractor")
	r.RegisterTestSuite(JQMID, func(o Options) TestSuiteExtractor { return NewJQMExtractor(o) },
		"jqm-test-suite-extractor", "jquery-mobile-test-suite-extractor")
	r.RegisterTestSuite(YAMLDeclarationID, func(o Options) TestSuiteExtractor { return NewYAMLDeclarationExtractor(o) })

	return r
}

// RegisterModule adds a module extractor under id and any aliases.
func (r *Registry) RegisterModule(id string, f ModuleFactory, aliases ...string) {
	r.modules[id] = f
	r.alias(id, aliases)
}

// RegisterTestSuite adds a test-suite extractor under id and any aliases.
func (r *Registry) RegisterTestSuite(id string, f TestSuiteFactory, aliases ...string) {
	r.suites[id] = f
	r.alias(id, aliases)
}

func (r *Registry) alias(id string, aliases []string) {
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = id
	}
}

func (r *Registry) canonical(id string) string {
	if c, ok := r.aliases[strings.ToLower(id)]; ok {
		return c
	}
	return id
}

// ModuleExtractor resolves id to a module extractor.
func (r *Registry) ModuleExtractor(id string) (ModuleExtractor, error) {
	f, ok := r.modules[r.canonical(id)]
	if !ok {
		return nil, errors.New(errors.UnknownExtractor,
			fmt.Sprintf("unknown module extractor %q (available: %s)", id, strings.Join(r.ModuleIDs(), ", ")), nil)
	}
	if err := checkParser(r.canonical(id)); err != nil {
		return nil, err
	}
	return f(r.opts), nil
}

// TestSuiteExtractor resolves id to a test-suite extractor.
func (r *Registry) TestSuiteExtractor(id string) (TestSuiteExtractor, error) {
	f, ok := r.suites[r.canonical(id)]
	if !ok {
		return nil, errors.New(errors.UnknownExtractor,
			fmt.Sprintf("unknown test suite extractor %q (available: %s)", id, strings.Join(r.TestSuiteIDs(), ", ")), nil)
	}
	if err := checkParser(r.canonical(id)); err != nil {
		return nil, err
	}
	return f(r.opts), nil
}

// checkParser rejects a JavaScript extractor when parsing is not compiled
// in, so a cgo-less build fails up front instead of skipping every file.
func checkParser(id string) error {
	if jsExtractors[id] && !jsast.IsAvailable() {
		return errors.New(errors.ConfigInvalid,
			fmt.Sprintf("extractor %q needs JavaScript parsing, which this build lacks (rebuild with CGO_ENABLED=1)", id), jsast.ErrNoCGO)
	}
	return nil
}

// ModuleIDs lists the canonical module extractor ids.
func (r *Registry) ModuleIDs() []string {
	return keys(r.modules)
}

// TestSuiteIDs lists the canonical test-suite extractor ids.
func (r *Registry) TestSuiteIDs() []string {
	return keys(r.suites)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
