package extract

import (
	"context"
	"fmt"
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"retrospec/internal/errors"
	"retrospec/internal/jsast"
	"retrospec/internal/project"
)

func TestRegistryResolvesAliases(t *testing.T) {
	r := NewRegistry(Options{})

	tests := []struct {
		id   string
		want string
	}{
		{"angular-module", AngularModuleID},
		{"angular-module-extractor", AngularModuleID},
		{"AngularJS", AngularModuleID},
		{"requirejs-module-extractor", RequireJSModuleID},
		{"toml-declaration", TOMLDeclarationID},
		{"scip-index", SCIPIndexID},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if jsExtractors[tt.want] && !jsast.IsAvailable() {
				t.Skip("javascript parsing not compiled in")
			}
			e, err := r.ModuleExtractor(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.ID())
		})
	}

	suites := map[string]string{
		"angular-karma-test-suite-extractor": AngularKarmaID,
		"inline-comment":                     InlineCommentID,
		"jquery-mobile-test-suite-extractor": JQMID,
		"jqm-test-suite-extractor":           JQMID,
		"yaml-declaration":                   YAMLDeclarationID,
	}
	for id, want := range suites {
		if jsExtractors[want] && !jsast.IsAvailable() {
			continue
		}
		e, err := r.TestSuiteExtractor(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, e.ID())
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry(Options{})

	_, err := r.ModuleExtractor("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.UnknownExtractor))

	_, err = r.TestSuiteExtractor("angular-module")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.UnknownExtractor))
}

func TestRegistryIDsSorted(t *testing.T) {
	r := NewRegistry(Options{})
	assert.Equal(t, []string{AngularModuleID, RequireJSModuleID, SCIPIndexID, TOMLDeclarationID}, r.ModuleIDs())
	assert.Equal(t, []string{AngularKarmaID, InlineCommentID, JQMID, YAMLDeclarationID}, r.TestSuiteIDs())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&project.DuplicateModuleError{ID: "a"}))
	assert.True(t, IsFatal(&project.DuplicateTestSuiteError{Path: "a"}))
	assert.True(t, IsFatal(fmt.Errorf("a.js: %w", jsast.ErrNoCGO)))
	assert.False(t, IsFatal(context.Canceled))
	assert.False(t, IsFatal(nil))
}

func TestTOMLDeclaration(t *testing.T) {
	e := NewTOMLDeclarationExtractor(Options{})
	f := File{Path: "modules.toml", Hash: "h1", Content: []byte(`
[[module]]
id = "billing"
path = "billing/index.js"
dependencies = ["http", "core", "core"]

[[module]]
id = "core"
`)}

	got, err := e.ExtractModules(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "billing", got[0].ID)
	assert.Equal(t, "billing/index.js", got[0].Path)
	assert.Equal(t, []string{"core", "http"}, got[0].Dependencies)
	assert.Equal(t, "h1", got[0].ContentHash)

	assert.Equal(t, "modules.toml", got[1].Path)
	assert.Empty(t, got[1].Dependencies)
}

func TestTOMLDeclarationDuplicate(t *testing.T) {
	e := NewTOMLDeclarationExtractor(Options{})
	f := File{Path: "modules.toml", Content: []byte(`
[[module]]
id = "a"
[[module]]
id = "a"
`)}

	_, err := e.ExtractModules(context.Background(), f)
	var dup *project.DuplicateModuleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.ID)
	assert.True(t, IsFatal(err))
}

func TestTOMLDeclarationMalformed(t *testing.T) {
	e := NewTOMLDeclarationExtractor(Options{})
	_, err := e.ExtractModules(context.Background(), File{Path: "x.toml", Content: []byte("[[module]\nid=")})
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}

func TestYAMLDeclaration(t *testing.T) {
	e := NewYAMLDeclarationExtractor(Options{})
	f := File{Path: "suites.yaml", Hash: "h", Content: []byte(`
suites:
  - path: e2e/checkout.html
    dependencies: [cart, billing]
  - dependencies: [core]
`)}

	got, err := e.ExtractTestSuites(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2e/checkout.html", got[0].Path)
	assert.Equal(t, []string{"billing", "cart"}, got[0].Dependencies)
	assert.Equal(t, "suites.yaml", got[1].Path)
}

func TestSCIPIndex(t *testing.T) {
	def := int32(scippb.SymbolRole_Definition)
	index := &scippb.Index{
		Documents: []*scippb.Document{
			{
				RelativePath: "src/app.ts",
				Occurrences: []*scippb.Occurrence{
					{Symbol: "npm pkg 1.0 src/app.ts/main().", SymbolRoles: def},
					{Symbol: "npm pkg 1.0 src/util.ts/helper()."},
					{Symbol: "npm pkg 1.0 src/app.ts/main()."},
					{Symbol: "local 1"},
					{Symbol: "npm other 2.0 external()."},
				},
			},
			{
				RelativePath: "src/util.ts",
				Occurrences: []*scippb.Occurrence{
					{Symbol: "npm pkg 1.0 src/util.ts/helper().", SymbolRoles: def},
					{Symbol: "local 1", SymbolRoles: def},
				},
			},
		},
	}
	data, err := proto.Marshal(index)
	require.NoError(t, err)

	e := NewSCIPModuleExtractor(Options{})
	got, err := e.ExtractModules(context.Background(), File{Path: "index.scip", Content: data})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "src/app.ts", got[0].ID)
	assert.Equal(t, []string{"src/util.ts"}, got[0].Dependencies)
	assert.NotEmpty(t, got[0].ContentHash)
	assert.Equal(t, "src/util.ts", got[1].ID)
	assert.Empty(t, got[1].Dependencies)
	assert.NotEqual(t, got[0].ContentHash, got[1].ContentHash)
}

func TestSCIPIndexMalformed(t *testing.T) {
	e := NewSCIPModuleExtractor(Options{})
	_, err := e.ExtractModules(context.Background(), File{Path: "index.scip", Content: []byte{0xff, 0xff, 0xff}})
	require.Error(t, err)
}

func TestApplyPaths(t *testing.T) {
	aliases := map[string]string{
		"jquery":    "lib/jquery/jquery.js",
		"lib":       "vendor",
		"lib/extra": "third_party/extra",
	}
	tests := []struct {
		in, want string
	}{
		{"jquery", "lib/jquery/jquery"},
		{"lib/a", "vendor/a"},
		{"lib/extra/b", "third_party/extra/b"},
		{"libx", "libx"},
		{"app/main", "app/main"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, applyPaths(aliases, tt.in), tt.in)
	}
}
