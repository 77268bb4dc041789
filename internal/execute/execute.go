// Package execute hands the selected test paths to a test runner.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"retrospec/internal/slogutil"
)

// Executor runs a set of test suites. tests are paths relative to the test
// directory, sorted and unique; Execute is never called with an empty
// list.
type Executor interface {
	ID() string
	Execute(ctx context.Context, tests []string) (*Result, error)
}

// Result describes what was run.
type Result struct {
	// Commands holds one argv per process started, in order.
	Commands [][]string `json:"commands,omitempty"`
	Output   string     `json:"output,omitempty"`
	ExitCode int        `json:"exitCode"`
}

// ExecutionError reports a runner that exited non-zero or could not start.
type ExecutionError struct {
	Command  []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExecutionError) Error() string {
	cmd := strings.Join(e.Command, " ")
	if e.ExitCode > 0 {
		return fmt.Sprintf("test runner %q exited with code %d", cmd, e.ExitCode)
	}
	return fmt.Sprintf("test runner %q failed: %v", cmd, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Options configures the built-in executors.
type Options struct {
	// TestDir is the absolute test directory the paths are relative to.
	TestDir string
	// WorkDir is where runner processes start.
	WorkDir string
	// Command is the argv template for the command executor.
	Command []string
	// KarmaTemplate names the template rewritten by the karma-template
	// executor, relative to WorkDir.
	KarmaTemplate string
	// Stdout receives runner output as it is produced; nil discards it.
	Stdout io.Writer
	Logger *slog.Logger

	run runFunc
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slogutil.NewDiscardLogger()
	}
	return o.Logger
}

func (o Options) stdout() io.Writer {
	if o.Stdout == nil {
		return io.Discard
	}
	return o.Stdout
}

func (o Options) runner() runFunc {
	if o.run == nil {
		return runProcess
	}
	return o.run
}

// runFunc starts argv in dir, streaming combined output to w, and returns
// the captured output and exit code.
type runFunc func(ctx context.Context, dir string, argv []string, w io.Writer) (output string, exitCode int, err error)

func runProcess(ctx context.Context, dir string, argv []string, w io.Writer) (string, int, error) {
	if len(argv) == 0 {
		return "", -1, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin

	var buf bytes.Buffer
	out := io.MultiWriter(&buf, w)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return buf.String(), exitErr.ExitCode(), nil
		}
		return buf.String(), -1, err
	}
	return buf.String(), 0, nil
}

// run executes one argv and converts failures to *ExecutionError.
func run(ctx context.Context, opts Options, argv []string) (string, error) {
	log := opts.logger()
	log.Info("running tests", "command", strings.Join(argv, " "), "dir", opts.WorkDir)

	output, code, err := opts.runner()(ctx, opts.WorkDir, argv, opts.stdout())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, ctxErr
		}
		return output, &ExecutionError{Command: argv, ExitCode: code, Output: output, Err: err}
	}
	if code != 0 {
		return output, &ExecutionError{Command: argv, ExitCode: code, Output: output}
	}
	return output, nil
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
