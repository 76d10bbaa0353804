// Package analysis orchestrates the distribution analysis of vegetation
// and moisture index rasters: statistics, normality verdicts, printed
// reports and artifacts.
package analysis

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"rsmetrics/internal/models"
	"rsmetrics/pkg/observability"
	"rsmetrics/pkg/raster"
	"rsmetrics/pkg/statistics"
)

// KnownIndices is the vocabulary matched against file names, in match order
var KnownIndices = []string{"NDVI", "EVI", "LAI", "MSI", "SAVI", "NDWI", "NDMI", "NDRE"}

// Params holds the analysis configuration.
type Params struct {
	// OutputDir receives plots and tables. When empty no artifacts are
	// written and only the in-memory results and printed reports remain.
	OutputDir string

	// MaxSample caps the number of values passed to the normality tests.
	// Zero means statistics.DefaultMaxSample.
	MaxSample int

	// Seed makes normality subsampling reproducible. Zero uses the
	// unseeded global source.
	Seed uint64

	// SavePlots enables the distribution and comparison figures
	SavePlots bool

	// SaveQuicklook enables the grayscale rendering of each raster
	SaveQuicklook bool

	// SaveXLSX enables the spreadsheet copy of the comparison table
	SaveXLSX bool

	// Reader loads rasters. Defaults to the GDAL reader.
	Reader statistics.RasterReader

	// Logger receives diagnostics. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Metrics records analysis counters. Defaults to metrics on a private
	// registry.
	Metrics *observability.Metrics

	// Clock timestamps runs. Defaults to the real clock.
	Clock clockwork.Clock

	// Out receives the printed reports. Defaults to standard output.
	Out io.Writer
}

// Analyzer analyzes index rasters one at a time. It is not safe for
// concurrent use.
type Analyzer struct {
	params  *Params
	calc    *statistics.Calculator
	tester  *statistics.NormalityTester
	log     logrus.FieldLogger
	metrics *observability.Metrics
	clock   clockwork.Clock
	out     io.Writer

	// artifacts lists the files written so far, for the run manifest
	artifacts []string
}

// NewAnalyzer creates an analyzer, filling unset Params fields with their
// defaults and creating the output directory when one is configured.
func NewAnalyzer(params *Params) (*Analyzer, error) {
	p := *params
	if p.Reader == nil {
		p.Reader = raster.NewReader()
	}
	if p.Logger == nil {
		p.Logger = logrus.StandardLogger()
	}
	if p.Metrics == nil {
		p.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	if p.Out == nil {
		p.Out = os.Stdout
	}

	if p.OutputDir != "" {
		if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var src rand.Source
	if p.Seed != 0 {
		src = rand.NewPCG(p.Seed, p.Seed)
	}
	tester := statistics.NewNormalityTester(src)
	if p.MaxSample > 0 {
		tester.MaxSample = p.MaxSample
	}

	return &Analyzer{
		params:  &p,
		calc:    statistics.NewCalculator(p.Reader),
		tester:  tester,
		log:     p.Logger,
		metrics: p.Metrics,
		clock:   p.Clock,
		out:     p.Out,
	}, nil
}

// AnalyzeIndex analyzes one raster: it loads the valid values, computes the
// basic statistics, runs the normality tests, interprets them and prints
// the results. With an output directory configured it also writes the
// distribution figure, a one-row statistics CSV and a quicklook.
//
// Read and empty-sample errors are returned without a record. Normality
// tests that cannot run on the sample are logged and left out of the
// record. Artifact failures are logged and never returned.
func (a *Analyzer) AnalyzeIndex(path string) (*models.IndexRecord, error) {
	return a.analyzeIndex(ExtractIndexName(path), path)
}

func (a *Analyzer) analyzeIndex(name, path string) (*models.IndexRecord, error) {
	start := a.clock.Now()
	fileName := fileStem(path)
	log := a.log.WithFields(logrus.Fields{"index": name, "path": path})

	fmt.Fprintf(a.out, "Analyzing distribution for %s...\n", fileName)

	r, err := a.calc.LoadRaster(path)
	if err != nil {
		a.metrics.AnalysesTotal.WithLabelValues(observability.OutcomeError).Inc()
		return nil, err
	}
	values := r.ValidValues()

	stats, err := statistics.CalculateBasicStats(values)
	if err != nil {
		a.metrics.AnalysesTotal.WithLabelValues(observability.OutcomeError).Inc()
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}

	tests, err := a.tester.RunAllTests(values)
	if err != nil {
		log.WithError(err).Warn("Some normality tests could not run")
	}

	record := &models.IndexRecord{
		Name:     name,
		FileName: fileName,
		Path:     path,
		Stats:    stats,
		Tests:    tests,
	}
	record.Verdict = statistics.InterpretNormality(record.Evidence())

	if a.params.OutputDir != "" {
		a.writeIndexArtifacts(record, r, values)
	}

	a.printAnalysisResults(record)

	a.metrics.AnalysesTotal.WithLabelValues(observability.OutcomeSuccess).Inc()
	a.metrics.SamplesAnalyzed.Observe(float64(stats.Count))
	if !record.Verdict.IsNormal {
		a.metrics.NonNormalTotal.WithLabelValues(name).Inc()
	}
	elapsed := a.clock.Since(start)
	a.metrics.AnalysisDuration.Observe(elapsed.Seconds())

	log.WithFields(logrus.Fields{
		"count":     stats.Count,
		"is_normal": record.Verdict.IsNormal,
		"elapsed":   elapsed.Round(time.Millisecond),
	}).Info("Analysis complete")

	return record, nil
}

// ExtractIndexName returns the first known index token contained in the
// file name stem of path, or the whole stem when none matches
func ExtractIndexName(path string) string {
	stem := fileStem(path)
	for _, index := range KnownIndices {
		if strings.Contains(stem, index) {
			return index
		}
	}
	return stem
}

// Artifacts returns the files written by the analyzer so far
func (a *Analyzer) Artifacts() []string {
	out := make([]string, len(a.artifacts))
	copy(out, a.artifacts)
	return out
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
