package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mmtn/deposition-molecular-dynamics/internal/export"
	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/status"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export campaign data as Arrow IPC files",
		Long: `Export campaign data as Arrow IPC files for external analysis.

'iterations' exports the ledger, one row per recorded iteration, oldest
first. 'state' exports the particles of the snapshot the checkpoint
currently points at.`,
	}

	// Add subcommands
	cmd.AddCommand(
		newExportIterationsCmd(),
		newExportStateCmd(),
	)

	return cmd
}

func newExportIterationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iterations",
		Short: "Export the iteration ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if _, err := os.Stat(ledger.DBFileName); err != nil {
				return fmt.Errorf("no campaign ledger in this directory")
			}
			ledg, err := ledger.OpenSQLite(ledger.DBFileName)
			if err != nil {
				return err
			}
			defer ledg.Close()

			records, err := ledg.List(context.Background(), 0)
			if err != nil {
				return err
			}
			slices.Reverse(records)

			if err := writeArrowFile(output, func(f *os.File) error {
				return export.WriteIterations(f, records)
			}); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":  output,
					"count": len(records),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d iterations to %s\n", len(records), output)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newExportStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Export the current structure snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := status.Load(status.FileName)
			if err != nil {
				return err
			}
			state, err := structure.LoadSnapshot(st.StateReference)
			if err != nil {
				return err
			}

			if err := writeArrowFile(output, func(f *os.File) error {
				return export.WriteState(f, state)
			}); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":      output,
					"particles": state.Len(),
					"snapshot":  st.StateReference,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d particles to %s\n", state.Len(), output)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path")
	cmd.MarkFlagRequired("output")

	return cmd
}

// writeArrowFile creates the output file and hands it to write, keeping
// close errors because the IPC writer buffers through the file.
func writeArrowFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
