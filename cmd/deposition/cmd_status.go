package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/status"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show campaign progress",
		Long: `Show the campaign checkpoint and the recorded history.

The checkpoint says where the next run would pick up; the ledger summary
says what has happened so far.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if !status.Exists(status.FileName) {
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"exists": false,
					})
				}
				fmt.Fprintln(out, "No campaign in this directory. Run 'deposition run' to start one.")
				return nil
			}

			st, err := status.Load(status.FileName)
			if err != nil {
				return err
			}

			sum, err := loadSummary(context.Background())
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"exists": true,
					"status": st,
					"ledger": sum,
				})
			}

			fmt.Fprintln(out, "Campaign:")
			fmt.Fprintf(out, "  Next iteration:       %d\n", st.IterationNumber)
			fmt.Fprintf(out, "  Sequential failures:  %d\n", st.SequentialFailures)
			fmt.Fprintf(out, "  Total failures:       %d\n", st.TotalFailures)
			fmt.Fprintf(out, "  State reference:      %s\n", st.StateReference)
			fmt.Fprintf(out, "  Last updated:         %s\n", st.LastUpdated.Format(time.RFC3339))

			fmt.Fprintln(out, "\nLedger:")
			fmt.Fprintf(out, "  Iterations recorded:  %d\n", sum.Iterations)
			fmt.Fprintf(out, "  Successes:            %d\n", sum.Successes)
			fmt.Fprintf(out, "  Failures:             %d\n", sum.Failures)
			if !sum.LastFinished.IsZero() {
				fmt.Fprintf(out, "  Last finished:        %s\n", sum.LastFinished.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// loadSummary aggregates the ledger if one exists. A campaign killed
// before its first iteration has a checkpoint but no database; that is
// an empty history, not an error.
func loadSummary(ctx context.Context) (ledger.Summary, error) {
	if _, err := os.Stat(ledger.DBFileName); err != nil {
		return ledger.Summary{}, nil
	}
	ledg, err := ledger.OpenSQLite(ledger.DBFileName)
	if err != nil {
		return ledger.Summary{}, err
	}
	defer ledg.Close()
	return ledg.Summary(ctx)
}
