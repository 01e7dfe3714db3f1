package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded iterations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			failedOnly, _ := cmd.Flags().GetBool("failed")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()

			records, err := listRecords(context.Background(), failedOnly, limit)
			if err != nil {
				return err
			}

			if jsonOut {
				if records == nil {
					records = []ledger.Record{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"iterations": records,
					"count":      len(records),
				})
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "No iterations recorded yet.")
				return nil
			}

			fmt.Fprintf(out, "Iteration history (%d):\n\n", len(records))
			for _, rec := range records {
				fmt.Fprintf(out, "%4d  %-7s  %5d particles  %-20s  %s\n",
					rec.Iteration, rec.Outcome, rec.Particles,
					rec.ArchivePath, rec.FinishedAt.Format(time.RFC3339))
				if rec.Reason != "" {
					fmt.Fprintf(out, "      %s\n", rec.Reason)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("failed", false, "Show failed iterations only")
	cmd.Flags().Int("limit", 0, "Show at most N records (0 = all)")

	return cmd
}

// listRecords reads the ledger, applying the failure filter before the
// limit so --failed --limit N means the last N failures.
func listRecords(ctx context.Context, failedOnly bool, limit int) ([]ledger.Record, error) {
	if _, err := os.Stat(ledger.DBFileName); err != nil {
		return nil, nil
	}
	ledg, err := ledger.OpenSQLite(ledger.DBFileName)
	if err != nil {
		return nil, err
	}
	defer ledg.Close()

	fetch := limit
	if failedOnly {
		fetch = 0
	}
	records, err := ledg.List(ctx, fetch)
	if err != nil {
		return nil, err
	}

	if failedOnly {
		failures := records[:0]
		for _, rec := range records {
			if rec.Outcome == ledger.OutcomeFailure {
				failures = append(failures, rec)
			}
		}
		records = failures
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
	}
	return records, nil
}
