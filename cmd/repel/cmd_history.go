package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/repel/internal/record"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with --record, most recent first.

Use 'repel history show <run-id>' for per-iteration detail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			runs, err := rec.ListRuns(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs yet. Run with --record to start recording.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded runs (%d):\n\n", len(runs))
			for i, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, r.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "   Started:  %s\n", r.StartedAt.Format(time.RFC3339))
				fmt.Fprintf(cmd.OutOrStdout(), "   Circles:  %d, iterations: %d, backend: %s, seed: %d\n",
					r.Circles, r.Iterations, r.Backend, r.Seed)
				if r.Finished {
					fmt.Fprintf(cmd.OutOrStdout(), "   Overlaps: %d total in %.6f s\n",
						r.TotalOverlaps, r.Elapsed.Seconds())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "   (unfinished)")
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().String("db", "", "History database path (default ~/.repel/runs.db)")
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")

	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-iteration detail for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID := args[0]

			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			stats, err := rec.Iterations(context.Background(), runID)
			if err != nil {
				return fmt.Errorf("failed to load iterations: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
			}

			if len(stats) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No iterations recorded for run %s.\n", runID)
				return nil
			}

			for _, s := range stats {
				fmt.Fprintf(cmd.OutOrStdout(), "Iteration %d: %d overlaps (%.6f s)\n",
					s.Iteration, s.Overlaps, s.Elapsed.Seconds())
			}
			return nil
		},
	}
}

// openRecorder opens the history database named by --db, the config,
// or the default location, in that order.
func openRecorder(cmd *cobra.Command) (*record.Recorder, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		path, err = recordPath(cfg)
		if err != nil {
			return nil, err
		}
	}

	rec, err := record.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return rec, nil
}
