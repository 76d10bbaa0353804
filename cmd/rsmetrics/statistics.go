package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rsmetrics/pkg/analysis"
	"rsmetrics/pkg/store"
)

func newStatisticsCmd(a *app) *cobra.Command {
	var inputDir, pattern, dbURL string

	cmd := &cobra.Command{
		Use:   "statistics",
		Short: "Analyze and compare every index raster found in the input directory",
		Args:  cobra.NoArgs,
		RunE: a.withMetrics(func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("input-dir") {
				a.cfg.Input.Directory = inputDir
			}
			if f.Changed("pattern") {
				a.cfg.Input.Pattern = pattern
			}
			if f.Changed("db-url") {
				a.cfg.Database.URL = dbURL
			}
			return a.runStatistics(cmd.Context())
		}),
	}

	cmd.Flags().StringVarP(&inputDir, "input-dir", "i", "", "directory holding the index rasters (overrides config)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "file name glob (overrides config)")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "Postgres connection string for storing the records (overrides config)")
	return cmd
}

func (a *app) runStatistics(ctx context.Context) error {
	dir := a.cfg.Input.Directory
	files, err := filepath.Glob(filepath.Join(dir, a.cfg.Input.Pattern))
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files matching %q in %s", a.cfg.Input.Pattern, dir)
	}

	paths := analysis.IdentifyIndices(files)
	if len(paths) == 0 {
		return fmt.Errorf("%w among %d files in %s", analysis.ErrNoIndices, len(files), dir)
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(a.out, "Found %d index rasters in %s:\n", len(names), dir)
	for _, name := range names {
		fmt.Fprintf(a.out, "- %s: %s\n", name, filepath.Base(paths[name]))
	}

	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}

	startTime := time.Now()
	report, err := analyzer.GenerateStatistics(paths)
	if err != nil {
		return err
	}

	if a.cfg.Output.Manifest {
		manifest := analyzer.NewManifest(report, dir)
		path, err := analyzer.SaveManifest(manifest, a.cfg.Output.Prefix)
		if err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}
		if path != "" {
			fmt.Fprintf(a.out, "\nRun manifest saved to: %s\n", path)
		}
	}

	if err := a.storeReport(ctx, report); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nRun %s completed in %.2f seconds: %d indices analyzed", report.RunID, time.Since(startTime).Seconds(), len(report.Records))
	if len(report.Failed) > 0 {
		fmt.Fprintf(a.out, ", %d failed", len(report.Failed))
	}
	fmt.Fprintln(a.out)
	if a.cfg.Output.Directory != "" {
		fmt.Fprintf(a.out, "Results saved to: %s\n", a.cfg.Output.Directory)
	}
	return nil
}

// databaseURL returns the configured connection string, falling back to
// the POSTGRES_* environment. It returns store.ErrNoDSN when neither is set.
func (a *app) databaseURL() (string, error) {
	if a.cfg.Database.URL != "" {
		return a.cfg.Database.URL, nil
	}
	return store.DSNFromEnv()
}

// storeReport saves the records of report when a database is configured
func (a *app) storeReport(ctx context.Context, report *analysis.StatisticsReport) error {
	dsn, err := a.databaseURL()
	if errors.Is(err, store.ErrNoDSN) {
		return nil
	}
	if err != nil {
		return err
	}

	s, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if err := s.SaveRecords(ctx, report.RunID, report.Timestamp, report.Records); err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"records": len(report.Records),
	}).Info("Records stored")
	return nil
}
