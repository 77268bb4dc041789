package extract

import (
	"context"
	"strings"

	"retrospec/internal/jsast"
	"retrospec/internal/project"
)

const InlineCommentID = "inline-comment"

const inlineMarker = "retrospec.testSuite("

// InlineCommentExtractor reads suites declared in comments:
//
//	// retrospec.testSuite(['a', 'b'])
//
// Several declarations may share a comment when separated by semicolons;
// all declarations in a file merge into one suite.
type InlineCommentExtractor struct {
	opts Options
}

func NewInlineCommentExtractor(opts Options) *InlineCommentExtractor {
	return &InlineCommentExtractor{opts: opts}
}

func (e *InlineCommentExtractor) ID() string { return InlineCommentID }

func (e *InlineCommentExtractor) ExtractTestSuites(ctx context.Context, f File) ([]project.TestSuite, error) {
	src, err := jsast.Parse(ctx, f.Content)
	if err != nil {
		return nil, err
	}

	var (
		deps  []string
		found bool
	)
	for _, c := range src.Comments {
		if !strings.Contains(c.Text, inlineMarker) {
			continue
		}
		decl, err := jsast.Parse(ctx, []byte(c.Text))
		if err != nil {
			e.opts.logger().Warn("malformed test suite definition",
				"path", f.Path, "line", c.Line, "error", err)
			continue
		}

		ok := false
		for _, call := range decl.CallsTo("retrospec.testSuite") {
			if !call.Is("retrospec.testSuite", jsast.KindArray) {
				continue
			}
			deps = append(deps, call.Args[0].Strings()...)
			ok = true
		}
		if !ok {
			e.opts.logger().Warn("malformed test suite definition",
				"path", f.Path, "line", c.Line)
			continue
		}
		found = true
	}

	if !found {
		return nil, nil
	}
	suite, err := project.NewTestSuite(f.Path, deps, f.Hash)
	if err != nil {
		return nil, err
	}
	return []project.TestSuite{suite}, nil
}
