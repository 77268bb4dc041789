package main

import (
	"os"

	"retrospec/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}
