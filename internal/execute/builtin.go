package execute

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	ListID    = "list"
	CommandID = "command"
	KarmaID   = "karma"
)

// List prints the selected paths, one per line, and runs nothing.
type List struct {
	opts Options
}

func NewList(opts Options) *List {
	return &List{opts: opts}
}

func (e *List) ID() string { return ListID }

func (e *List) Execute(ctx context.Context, tests []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := strings.Join(tests, "\n") + "\n"
	if _, err := fmt.Fprint(e.opts.stdout(), out); err != nil {
		return nil, err
	}
	return &Result{Output: out}, nil
}

const (
	testsPlaceholder       = "{tests}"
	testsJoinedPlaceholder = "{testsJoined}"
)

// Command runs a user-supplied argv. An argument equal to {tests} expands
// to every selected path; {testsJoined} is replaced by the comma-joined
// list wherever it appears. Without a placeholder the paths are appended.
type Command struct {
	opts Options
}

func NewCommand(opts Options) (*Command, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("test.command is empty")
	}
	return &Command{opts: opts}, nil
}

func (e *Command) ID() string { return CommandID }

func (e *Command) Execute(ctx context.Context, tests []string) (*Result, error) {
	argv := expandCommand(e.opts.Command, tests)
	out, err := run(ctx, e.opts, argv)
	res := &Result{Commands: [][]string{argv}, Output: out}
	if err != nil {
		res.ExitCode = exitCode(err)
		return res, err
	}
	return res, nil
}

func expandCommand(tmpl, tests []string) []string {
	argv := make([]string, 0, len(tmpl)+len(tests))
	joined := strings.Join(tests, ",")
	placed := false
	for _, arg := range tmpl {
		switch {
		case arg == testsPlaceholder:
			argv = append(argv, tests...)
			placed = true
		case strings.Contains(arg, testsJoinedPlaceholder):
			argv = append(argv, strings.ReplaceAll(arg, testsJoinedPlaceholder, joined))
			placed = true
		default:
			argv = append(argv, arg)
		}
	}
	if !placed {
		argv = append(argv, tests...)
	}
	return argv
}

// Karma starts one single-run karma process per test file and stops at the
// first failure.
type Karma struct {
	opts Options
}

func NewKarma(opts Options) *Karma {
	return &Karma{opts: opts}
}

func (e *Karma) ID() string { return KarmaID }

func (e *Karma) Execute(ctx context.Context, tests []string) (*Result, error) {
	res := &Result{}
	var output strings.Builder
	for _, t := range unique(tests) {
		argv := []string{"karma", "start", filepath.Join(e.opts.TestDir, filepath.FromSlash(t)), "--single-run"}
		res.Commands = append(res.Commands, argv)

		out, err := run(ctx, e.opts, argv)
		output.WriteString(out)
		if err != nil {
			res.Output = output.String()
			res.ExitCode = exitCode(err)
			return res, err
		}
	}
	res.Output = output.String()
	return res, nil
}

func exitCode(err error) int {
	if ee, ok := err.(*ExecutionError); ok && ee.ExitCode > 0 {
		return ee.ExitCode
	}
	return 1
}
