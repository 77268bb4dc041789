package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotFormat string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage the baseline snapshot",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Extract the project and save it as the baseline without running tests",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotSave,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the saved baseline",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotShow,
}

var snapshotResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the saved baseline so the next run selects everything",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotReset,
}

func init() {
	snapshotCmd.PersistentFlags().StringVar(&snapshotFormat, "format", "human", "Output format (human, json)")
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotShowCmd, snapshotResetCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func printProject(cmd *cobra.Command, resp *ProjectSummaryCLI) error {
	format, err := parseFormat(snapshotFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}
	if format == FormatJSON {
		data, err := formatJSON(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), data)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), formatProjectHuman(resp))
	return nil
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	p, err := s.engine.SaveCurrent(ctx)
	if err != nil {
		return err
	}
	return printProject(cmd, convertProject(p, s.engine.Store().Location()))
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	p, found, err := s.engine.Baseline(ctx)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(cmd.OutOrStdout(), "No baseline snapshot saved.")
		fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'retrospec run --save' or 'retrospec snapshot save' to create one.")
		return nil
	}
	return printProject(cmd, convertProject(p, s.engine.Store().Location()))
}

func runSnapshotReset(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	if err := s.engine.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Baseline snapshot discarded.")
	return nil
}
