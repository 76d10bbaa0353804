package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rsmetrics/pkg/analysis"
	"rsmetrics/pkg/config"
	"rsmetrics/pkg/observability"
)

// app carries the flags and the state shared by every command
type app struct {
	out    io.Writer
	errOut io.Writer

	// Global flags
	cfgFile         string
	envFile         string
	outputDir       string
	maxSample       int
	seed            uint64
	noPlots         bool
	logLevel        string
	logFormat       string
	metricsTextfile string

	// Loaded configuration
	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "rsmetrics",
		Short: "Distribution statistics and normality analysis of vegetation index rasters",
		Long: `rsmetrics loads single-band index rasters (EVI, LAI, MSI, ...), computes
descriptive statistics, runs Shapiro-Wilk, D'Agostino-Pearson and Anderson-Darling
normality tests and writes plots, tables and a run manifest.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	f := rootCmd.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "config.yaml", "config file")
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	f.StringVarP(&a.outputDir, "output-dir", "o", "", "artifact directory, empty disables artifacts (overrides config)")
	f.IntVar(&a.maxSample, "max-sample", 0, "values passed to the normality tests (overrides config)")
	f.Uint64Var(&a.seed, "seed", 0, "subsampling seed, 0 for unseeded (overrides config)")
	f.BoolVar(&a.noPlots, "no-plots", false, "skip distribution and comparison figures")
	f.StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")
	f.StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides config)")
	f.StringVar(&a.metricsTextfile, "metrics-textfile", "", "write metrics to this node exporter textfile (overrides config)")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newCompareCmd(a),
		newStatisticsCmd(a),
		newInspectCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// setup loads the environment and the configuration, then applies flag
// overrides and builds the logger and the metrics registry
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := a.loadEnv(); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	// Apply CLI overrides if provided
	f := cmd.Flags()
	if f.Changed("output-dir") {
		cfg.Output.Directory = a.outputDir
	}
	if f.Changed("max-sample") {
		cfg.Analysis.MaxSample = a.maxSample
	}
	if f.Changed("seed") {
		cfg.Analysis.Seed = a.seed
	}
	if a.noPlots {
		cfg.Output.Plots = false
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if f.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if f.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = a.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.log, err = observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format, a.errOut)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)
	return nil
}

// loadEnv loads the dotenv file if there is one
func (a *app) loadEnv() error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", a.envFile, err)
	}
	return nil
}

func (a *app) newAnalyzer() (*analysis.Analyzer, error) {
	return analysis.NewAnalyzer(&analysis.Params{
		OutputDir:     a.cfg.Output.Directory,
		MaxSample:     a.cfg.Analysis.MaxSample,
		Seed:          a.cfg.Analysis.Seed,
		SavePlots:     a.cfg.Output.Plots,
		SaveQuicklook: a.cfg.Output.Quicklook,
		SaveXLSX:      a.cfg.Output.XLSX,
		Logger:        a.log,
		Metrics:       a.metrics,
		Out:           a.out,
	})
}

// withMetrics wraps a command so the metrics textfile is written whether or
// not the command fails. Failure counters only matter on the failing path.
func (a *app) withMetrics(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if exportErr := a.exportMetrics(); exportErr != nil {
				err = errors.Join(err, exportErr)
			}
		}()
		return run(cmd, args)
	}
}

func (a *app) exportMetrics() error {
	if a.cfg == nil || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := observability.WriteTextfile(a.registry, a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.log.WithField("path", a.cfg.Metrics.Textfile).Debug("Metrics written")
	return nil
}
