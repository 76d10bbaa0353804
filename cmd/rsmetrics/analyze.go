package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rsmetrics/pkg/analysis"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <raster>...",
		Short: "Analyze the distribution of one or more index rasters",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withMetrics(func(cmd *cobra.Command, args []string) error {
			analyzer, err := a.newAnalyzer()
			if err != nil {
				return err
			}

			var errs []error
			for _, path := range args {
				if _, err := analyzer.AnalyzeIndex(path); err != nil {
					a.log.WithError(err).WithField("path", path).Error("Analysis failed")
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}),
	}
}

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare NAME=PATH...",
		Short: "Compare the statistics of several index rasters",
		Long: `Compare the statistics of several index rasters side by side. Each argument
is NAME=PATH; a bare PATH is named after the index found in its file name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.withMetrics(func(cmd *cobra.Command, args []string) error {
			paths, err := parseIndexArgs(args)
			if err != nil {
				return err
			}

			analyzer, err := a.newAnalyzer()
			if err != nil {
				return err
			}
			_, err = analyzer.CompareIndices(paths)
			return err
		}),
	}
}

// parseIndexArgs maps NAME=PATH arguments to a name -> path table
func parseIndexArgs(args []string) (map[string]string, error) {
	paths := make(map[string]string, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			name = analysis.ExtractIndexName(arg)
		}
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid index argument %q (want NAME=PATH)", arg)
		}
		if prev, dup := paths[name]; dup {
			return nil, fmt.Errorf("index %s given twice (%s and %s)", name, prev, path)
		}
		paths[name] = path
	}
	return paths, nil
}
