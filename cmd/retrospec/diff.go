package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	diffFormat string
	diffAll    bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Classify how modules and test suites changed since the snapshot",
	Long: `Compare the current project against the saved snapshot and print every
added, edited, moved and deleted module and test suite.

Examples:
  retrospec diff                # Changed entries only
  retrospec diff --all          # Include unchanged entries
  retrospec diff --format=json`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffFormat, "format", "human", "Output format (human, json)")
	diffCmd.Flags().BoolVar(&diffAll, "all", false, "Include unchanged entries")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(diffFormat, FormatHuman, FormatJSON)
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

	a, err := s.engine.Analyze(ctx)
	if err != nil {
		return err
	}
	resp := convertDiff(a, diffAll)

	if format == FormatJSON {
		data, err := formatJSON(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), data)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), formatDiffHuman(resp))
	return nil
}
