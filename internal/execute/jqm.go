package execute

import (
	"context"
	"path"
	"strings"
)

const (
	JQM144ID = "jqm-144"
	JQM131ID = "jqm-131"
)

// JQM runs jQuery Mobile's grunt suite runner with the selected suites.
// Paths lose their first segment (the test category folder); the 1.3.x
// runner takes page directories rather than .html files.
type JQM struct {
	id         string
	reduceHTML bool
	opts       Options
}

func NewJQM(id string, reduceHTML bool, opts Options) *JQM {
	return &JQM{id: id, reduceHTML: reduceHTML, opts: opts}
}

func (e *JQM) ID() string { return e.id }

func (e *JQM) Execute(ctx context.Context, tests []string) (*Result, error) {
	argv := []string{"grunt", "test", "--force", "--suites=" + strings.Join(SuiteNames(tests, e.reduceHTML), ",")}
	out, err := run(ctx, e.opts, argv)
	res := &Result{Commands: [][]string{argv}, Output: out}
	if err != nil {
		res.ExitCode = exitCode(err)
		return res, err
	}
	return res, nil
}

// SuiteNames converts test paths into grunt suite names. The list is passed
// as one argv entry with no shell in between, so names containing spaces
// are not quoted.
func SuiteNames(tests []string, reduceHTML bool) []string {
	names := make([]string, 0, len(tests))
	for _, t := range tests {
		t = strings.ReplaceAll(t, "\\", "/")
		if i := strings.IndexByte(t, '/'); i >= 0 {
			t = t[i+1:]
		}
		if reduceHTML && strings.HasSuffix(t, ".html") {
			if dir := path.Dir(t); dir != "." {
				t = dir
			}
		}
		names = append(names, t)
	}
	return unique(names)
}
