package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var selectFormat string

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Show which test suites a run would select, and why",
	Long: `Extract the project and diff it against the saved snapshot, then print
the selected test suites with the reason each one was picked. Nothing runs
and nothing is saved.

Examples:
  retrospec select                 # Human-readable selection
  retrospec select --format=list   # One path per line (for CI)
  retrospec select --format=json   # Selection with provenance`,
	Args: cobra.NoArgs,
	RunE: runSelect,
}

func init() {
	selectCmd.Flags().StringVar(&selectFormat, "format", "human", "Output format (human, json, list)")
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(selectFormat, FormatHuman, FormatJSON, FormatList)
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
	resp := convertSelection(a)

	out := cmd.OutOrStdout()
	switch format {
	case FormatList:
		fmt.Fprint(out, formatSelectionList(resp.Tests))
	case FormatJSON:
		data, err := formatJSON(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, data)
	default:
		fmt.Fprint(out, formatSelectionHuman(resp))
	}
	return nil
}
