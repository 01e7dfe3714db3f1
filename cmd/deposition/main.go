package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// fatalError marks a campaign malfunction. main maps it to exit code 2,
// keeping it distinguishable from an exhausted failure budget (exit 1).
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func main() {
	rootCmd := &cobra.Command{
		Use:   "deposition",
		Short: "Molecular dynamics deposition campaigns",
		Long: `deposition grows thin films one particle at a time: each iteration
injects new particles above the current structure, drives an external
molecular dynamics engine through a deposition and a relaxation phase,
validates the result and archives it.

Progress is checkpointed to status.yaml after every iteration, so an
interrupted campaign resumes where it stopped. Run every command from
the campaign root directory.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newCheckCmd(),
		newRunCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var fatal *fatalError
		if errors.As(err, &fatal) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
