package analysis

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot/vg"

	"rsmetrics/internal/models"
	"rsmetrics/pkg/visualization"
)

// Sink label values of the sink_errors_total metric
const (
	sinkPlot      = "plot"
	sinkCSV       = "csv"
	sinkXLSX      = "xlsx"
	sinkQuicklook = "quicklook"
	sinkManifest  = "manifest"
)

// Artifact file names
const (
	distributionSuffix = "_distribution_analysis.png"
	statisticsSuffix   = "_statistics.csv"
	quicklookSuffix    = "_quicklook.png"
	comparisonPlotFile = "index_comparison.png"
	comparisonCSVFile  = "index_comparison_stats.csv"
	comparisonXLSXFile = "index_comparison_stats.xlsx"
	manifestSuffix     = "_metadata.json"
)

// recordColumns are the columns of the per-index statistics CSV
var recordColumns = append(append([]string{}, models.BasicStatsColumns...),
	"shapiro_statistic", "shapiro_p_value",
	"dagostino_statistic", "dagostino_p_value",
	"anderson_statistic", "anderson_critical_value",
	"is_normal",
)

// sink runs write and records path as an artifact on success. Failures are
// logged and counted; they never reach the caller of the analysis.
func (a *Analyzer) sink(kind, path string, write func(string) error) {
	if err := write(path); err != nil {
		a.metrics.SinkErrorsTotal.WithLabelValues(kind).Inc()
		a.log.WithError(err).WithFields(logrus.Fields{
			"sink":     kind,
			"artifact": path,
		}).Error("Failed to write artifact")
		return
	}
	a.artifacts = append(a.artifacts, path)
	a.log.WithField("artifact", path).Debug("Wrote artifact")
}

func (a *Analyzer) outputPath(name string) string {
	return filepath.Join(a.params.OutputDir, name)
}

func (a *Analyzer) writeIndexArtifacts(record *models.IndexRecord, r *models.Raster, values []float64) {
	if a.params.SavePlots {
		a.sink(sinkPlot, a.outputPath(record.FileName+distributionSuffix), func(path string) error {
			grid, err := visualization.DistributionPlots(values, visualization.FormatTitle(record.Path), record.Stats)
			if err != nil {
				return err
			}
			return visualization.SavePlotGrid(grid, 30*vg.Centimeter, 24*vg.Centimeter, path)
		})
	}

	a.sink(sinkCSV, a.outputPath(record.FileName+statisticsSuffix), func(path string) error {
		return saveRecordCSV(record, path)
	})

	if a.params.SaveQuicklook {
		a.sink(sinkQuicklook, a.outputPath(record.FileName+quicklookSuffix), func(path string) error {
			return visualization.NewViewer(r).SaveQuicklook(path)
		})
	}
}

// saveRecordCSV writes the statistics and test results of one record as a
// single CSV row. Tests that did not run are left empty.
func saveRecordCSV(record *models.IndexRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	row := make([]string, 0, len(recordColumns))
	for _, v := range record.Stats.Values() {
		row = append(row, formatFloat(v))
	}
	row = appendTest(row, record.Tests.Shapiro)
	row = appendTest(row, record.Tests.DAgostino)
	if t := record.Tests.Anderson; t != nil {
		row = append(row, formatFloat(t.Statistic), formatFloat(t.CriticalValue))
	} else {
		row = append(row, "", "")
	}
	row = append(row, strconv.FormatBool(record.Verdict.IsNormal))

	w := csv.NewWriter(f)
	w.Write(recordColumns)
	w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func appendTest(row []string, t *models.TestResult) []string {
	if t == nil {
		return append(row, "", "")
	}
	return append(row, formatFloat(t.Statistic), formatFloat(t.PValue))
}
