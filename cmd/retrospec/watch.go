package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"retrospec/internal/paths"
	"retrospec/internal/watcher"
)

var (
	watchDebounce time.Duration
	watchFormat   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-select affected test suites whenever source or test files change",
	Long: `Watch the source and test directories and print the current selection
after every burst of changes. Unchanged files are served from the extraction
cache, so each cycle only re-parses what was touched. Nothing runs and the
snapshot is never saved.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before re-selecting")
	watchCmd.Flags().StringVar(&watchFormat, "format", "human", "Output format (human, list)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(watchFormat, FormatHuman, FormatList)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	selectOnce := func(ctx context.Context) {
		a, err := s.engine.Analyze(ctx)
		if err != nil {
			if ctx.Err() == nil {
				printError(cmd.ErrOrStderr(), err)
			}
			return
		}
		resp := convertSelection(a)
		if format == FormatList {
			fmt.Fprint(out, formatSelectionList(resp.Tests))
			return
		}
		fmt.Fprint(out, formatSelectionHuman(resp))
		fmt.Fprintln(out)
	}

	cfg := watcher.DefaultConfig()
	cfg.Debounce = watchDebounce
	cfg.Roots = uniqueRoots(s.engine.SourceDir(), s.engine.TestDir())

	w, err := watcher.New(cfg, s.logger, func(ctx context.Context, events []watcher.Event) {
		s.logger.Info("files changed", "count", len(events), "first", events[0].Path)
		selectOnce(ctx)
	})
	if err != nil {
		return err
	}

	selectOnce(ctx)
	return w.Run(ctx)
}

// uniqueRoots drops a root nested in (or equal to) another one.
func uniqueRoots(roots ...string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		nested := false
		for _, o := range roots {
			if r != o && paths.IsWithinRepo(r, o) {
				nested = true
				break
			}
		}
		if !nested && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
