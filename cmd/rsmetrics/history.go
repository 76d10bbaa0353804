package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rsmetrics/internal/models"
	"rsmetrics/pkg/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:   "history <run-id>",
		Short: "Print the records a statistics run stored in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("db-url") {
				a.cfg.Database.URL = dbURL
			}
			dsn, err := a.databaseURL()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := store.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.ListRun(ctx, args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no records stored for run %s", args[0])
			}
			printHistory(a.out, args[0], records)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbURL, "db-url", "", "Postgres connection string (overrides config)")
	return cmd
}

func printHistory(out io.Writer, runID string, records []*models.IndexRecord) {
	fmt.Fprintf(out, "Run %s: %d indices\n", runID, len(records))
	fmt.Fprintf(out, "%-8s %8s %10s %10s %10s %10s  %s\n", "Index", "Count", "Mean", "Std", "Skewness", "Kurtosis", "Normal")
	for _, r := range records {
		normal := "no"
		if r.Verdict.IsNormal {
			normal = "yes"
		}
		fmt.Fprintf(out, "%-8s %8d %10.4f %10.4f %10.4f %10.4f  %s\n",
			r.Name, r.Stats.Count, r.Stats.Mean, r.Stats.Std, r.Stats.Skewness, r.Stats.Kurtosis, normal)
	}
}
