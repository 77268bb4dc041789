package main

import (
	"github.com/spf13/cobra"

	"retrospec/internal/version"
)

var (
	configFlag      string
	rootFlag        string
	verbosityFlag   int
	quietFlag       bool
	metricsFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "retrospec",
	Short: "retrospec - regression test selection",
	Long: `retrospec re-runs only the test suites affected by a change.

It extracts module dependencies and test suites from the project, diffs them
against the snapshot saved by the last successful run, and selects every test
suite that depends, directly or transitively, on something that changed.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("retrospec version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: .retrospec/config.{json,yaml,toml})")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosityFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().StringVar(&metricsFileFlag, "metrics-file", "", "Write Prometheus metrics to this file after the command")
}
