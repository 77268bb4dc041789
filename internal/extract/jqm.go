package extract

import (
	"bytes"
	"context"

	"retrospec/internal/jsast"
	"retrospec/internal/project"
)

const JQMID = "jqm"

var (
	jqmQUnit     = []byte("qunit.js")
	jqmAsyncLoad = []byte("$.testHelper.asyncLoad")
	jqmScriptEnd = []byte("</script>")
)

// JQMExtractor reads jQuery Mobile QUnit pages, whose dependencies are
// loaded through $.testHelper.asyncLoad([[...], [...]]) inside a script
// tag.
type JQMExtractor struct {
	opts Options
}

func NewJQMExtractor(opts Options) *JQMExtractor {
	return &JQMExtractor{opts: opts}
}

func (e *JQMExtractor) ID() string { return JQMID }

func (e *JQMExtractor) ExtractTestSuites(ctx context.Context, f File) ([]project.TestSuite, error) {
	if !bytes.Contains(f.Content, jqmQUnit) {
		return nil, nil
	}
	start := bytes.Index(f.Content, jqmAsyncLoad)
	if start < 0 {
		return nil, nil
	}
	stmt := f.Content[start:]
	if end := bytes.Index(stmt, jqmScriptEnd); end >= 0 {
		stmt = stmt[:end]
	}

	src, err := jsast.Parse(ctx, stmt)
	if err != nil {
		return nil, err
	}

	var deps []string
	for _, c := range src.CallsTo(string(jqmAsyncLoad)) {
		if c.Is(string(jqmAsyncLoad), jsast.KindArray) {
			deps = append(deps, c.Args[0].Flatten()...)
		}
	}
	if len(deps) == 0 {
		return nil, nil
	}

	suite, err := project.NewTestSuite(f.Path, deps, f.Hash)
	if err != nil {
		return nil, err
	}
	return []project.TestSuite{suite}, nil
}
