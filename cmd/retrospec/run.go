package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retrospec/internal/engine"
)

var (
	runReset  bool
	runSave   bool
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run [config]",
	Short: "Select and run the test suites affected by changes",
	Long: `Extract the project, diff it against the saved snapshot and run every
affected test suite with the configured executor.

Without a saved snapshot every test suite runs. With --save the current
snapshot becomes the new baseline once the selected suites pass.

Examples:
  retrospec run                       # Run affected test suites
  retrospec run -s                    # ... and save the snapshot on success
  retrospec run -r -s                 # Discard the baseline, run everything, save
  retrospec run --dry-run             # Print the selection without running it
  retrospec run config/retrospec.json # Use an explicit config file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runReset, "reset", "r", false, "Discard the saved snapshot first, selecting every test suite")
	runCmd.Flags().BoolVarP(&runSave, "save", "s", false, "Save the current snapshot when the selected tests pass")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "List the selected test suites without running them")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	explicit := ""
	if len(args) == 1 {
		explicit = args[0]
	}

	s, err := openSession(cmd, explicit)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	res, err := s.engine.Run(ctx, engine.RunOptions{
		Reset:  runReset,
		Save:   runSave,
		DryRun: runDryRun,
	})
	if res != nil && res.Analysis != nil {
		fmt.Fprint(cmd.ErrOrStderr(), formatRunSummary(res))
	}
	return err
}
