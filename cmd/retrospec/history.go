package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(historyFormat, FormatHuman, FormatJSON)
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

	runs, err := s.engine.History(ctx, historyLimit)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		data, err := formatJSON(runs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), data)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), formatHistoryHuman(runs))
	return nil
}
