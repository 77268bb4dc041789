package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"retrospec/internal/config"
	"retrospec/internal/errors"
	"retrospec/internal/paths"
)

var (
	initForce  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration",
	Long: `Creates .retrospec/config.<format> in the project root with a starter
configuration: RequireJS modules under src/, inline-comment test suites under
test/ and the list executor. Edit it to match the project.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	initCmd.Flags().StringVar(&initFormat, "format", "json", "Config file format (json, yaml, toml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := getRepoRoot()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to get current directory", err)
	}

	path, created, err := initConfig(root, initFormat, initForce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !created {
		// Already initialized is success (CI-friendly)
		fmt.Fprintln(out, "retrospec already initialized.")
		fmt.Fprintf(out, "Configuration at: %s\n", path)
		fmt.Fprintln(out, "\nRun 'retrospec init --force' to overwrite it.")
		return nil
	}
	fmt.Fprintf(out, "Wrote starter configuration to %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set src/test paths, extractors and the executor")
	fmt.Fprintln(out, "  2. retrospec select    # check what would run")
	fmt.Fprintln(out, "  3. retrospec run -s    # run and save the baseline")
	return nil
}

// initConfig writes the starter config unless one already exists. It
// reports the config path and whether a file was written.
func initConfig(root, format string, force bool) (string, bool, error) {
	switch format {
	case "json", "yaml", "toml":
	default:
		return "", false, errors.New(errors.ConfigInvalid, fmt.Sprintf("unsupported config format %q (use json, yaml or toml)", format), nil)
	}

	dir := paths.DataDirPath(root)
	for _, ext := range []string{"json", "yaml", "yml", "toml"} {
		existing := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(existing); err == nil {
			if !force {
				return existing, false, nil
			}
			if err := os.Remove(existing); err != nil {
				return "", false, errors.New(errors.InternalError, "Failed to remove existing configuration", err)
			}
		}
	}

	path := filepath.Join(dir, "config."+format)
	if err := config.Starter().Save(path); err != nil {
		return "", false, errors.New(errors.InternalError, "Failed to write configuration", err)
	}
	return path, true, nil
}
