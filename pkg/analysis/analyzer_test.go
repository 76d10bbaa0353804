package analysis

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"rsmetrics/internal/models"
	"rsmetrics/pkg/observability"
	"rsmetrics/pkg/statistics"
)

var runStart = time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

// fakeReader serves in-memory rasters keyed by path
type fakeReader map[string]*models.Raster

func (f fakeReader) ReadBand(path string) (*models.Raster, error) {
	r, ok := f[path]
	if !ok {
		return nil, models.ErrRasterIO
	}
	return r, nil
}

// fixture bundles an analyzer with everything a test inspects
type fixture struct {
	analyzer *Analyzer
	out      *bytes.Buffer
	hook     *test.Hook
	metrics  *observability.Metrics
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T, reader fakeReader, outputDir string) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	out := &bytes.Buffer{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	clock := clockwork.NewFakeClockAt(runStart)

	a, err := NewAnalyzer(&Params{
		OutputDir:     outputDir,
		Seed:          42,
		SavePlots:     true,
		SaveQuicklook: true,
		SaveXLSX:      true,
		Reader:        reader,
		Logger:        logger,
		Metrics:       metrics,
		Clock:         clock,
		Out:           out,
	})
	require.NoError(t, err)

	return &fixture{analyzer: a, out: out, hook: hook, metrics: metrics, clock: clock}
}

// normalRaster holds the expected normal order statistics, scaled like EVI
func normalRaster(n int, nodata *float64) *models.Raster {
	pixels := make([]float64, 0, n+2)
	for i := 0; i < n; i++ {
		z := distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		pixels = append(pixels, 0.45+0.1*z)
	}
	if nodata != nil {
		pixels = append(pixels, *nodata, *nodata)
	}
	return lineRaster(pixels, nodata)
}

// skewedRaster holds exponential quantiles, right-skewed like MSI
func skewedRaster(n int) *models.Raster {
	pixels := make([]float64, n)
	for i := range pixels {
		pixels[i] = 0.4 - 0.3*math.Log(1-(float64(i)+0.5)/float64(n))
	}
	return lineRaster(pixels, nil)
}

func lineRaster(pixels []float64, nodata *float64) *models.Raster {
	return &models.Raster{
		Pixels: pixels,
		NoData: nodata,
		Metadata: models.RasterMetadata{
			Driver:    "GTiff",
			Width:     len(pixels),
			Height:    1,
			BandCount: 1,
			DataType:  "Float32",
		},
	}
}

func TestExtractIndexName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"rs_metrics_finland_20240401_EVI.tif", "EVI"},
		{"/data/exports/rs_metrics_finland_20240401_LAI.tif", "LAI"},
		{"MSI", "MSI"},
		{"custom_unlabeled.tif", "custom_unlabeled"},
		{"sentinel2_NDVI_2023.tif", "NDVI"},
		{"evi_lowercase.tif", "evi_lowercase"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractIndexName(tt.path), tt.path)
	}
}

func TestAnalyzeIndexNormal(t *testing.T) {
	nodata := -9999.0
	path := "rs_metrics_finland_20240401_EVI.tif"
	f := newFixture(t, fakeReader{path: normalRaster(400, &nodata)}, "")

	record, err := f.analyzer.AnalyzeIndex(path)
	require.NoError(t, err)

	assert.Equal(t, "EVI", record.Name)
	assert.Equal(t, "rs_metrics_finland_20240401_EVI", record.FileName)
	assert.Equal(t, path, record.Path)

	// Nodata pixels are excluded
	assert.Equal(t, 400, record.Stats.Count)
	assert.InDelta(t, 0.45, record.Stats.Mean, 1e-9)

	require.NotNil(t, record.Tests.Shapiro)
	require.NotNil(t, record.Tests.DAgostino)
	require.NotNil(t, record.Tests.Anderson)
	assert.True(t, record.Verdict.IsNormal, "reasons: %v", record.Verdict.Reasons)
	assert.Empty(t, record.Verdict.Reasons)

	out := f.out.String()
	assert.Contains(t, out, "Analyzing distribution for rs_metrics_finland_20240401_EVI...")
	assert.Contains(t, out, "=== Distribution Analysis Results ===")
	assert.Contains(t, out, "Mean: 0.4500")
	assert.Contains(t, out, "The distribution appears approximately normal.")
	assert.Contains(t, out, "EVI (Enhanced Vegetation Index)")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AnalysesTotal.WithLabelValues(observability.OutcomeSuccess)))
	assert.Empty(t, f.analyzer.Artifacts())
}

func TestAnalyzeIndexSkewed(t *testing.T) {
	path := "rs_metrics_finland_20240401_MSI.tif"
	f := newFixture(t, fakeReader{path: skewedRaster(1000)}, "")

	record, err := f.analyzer.AnalyzeIndex(path)
	require.NoError(t, err)

	assert.False(t, record.Verdict.IsNormal)
	require.Len(t, record.Verdict.Reasons, 4)
	assert.Contains(t, record.Verdict.Reasons[0], "Shapiro-Wilk")
	assert.Contains(t, record.Verdict.Reasons[1], "D'Agostino")
	assert.Contains(t, record.Verdict.Reasons[2], "Anderson-Darling")
	assert.Contains(t, record.Verdict.Reasons[3], "right-skewed")

	out := f.out.String()
	assert.Contains(t, out, "The distribution is not normal. Reasons:")
	assert.Contains(t, out, "- Skewness: ")
	assert.Contains(t, out, "MSI (Moisture Stress Index)")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NonNormalTotal.WithLabelValues("MSI")))
}

func TestAnalyzeIndexSubsamples(t *testing.T) {
	path := "large_LAI.tif"
	f := newFixture(t, fakeReader{path: skewedRaster(statistics.DefaultMaxSample * 3)}, "")

	// Shapiro-Wilk only accepts 5000 values; subsampling keeps it applicable
	record, err := f.analyzer.AnalyzeIndex(path)
	require.NoError(t, err)
	assert.Equal(t, statistics.DefaultMaxSample*3, record.Stats.Count)
	assert.NotNil(t, record.Tests.Shapiro)
}

func TestAnalyzeIndexArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "distribution_analysis")
	path := "/exports/rs_metrics_finland_20240401_LAI.tif"
	f := newFixture(t, fakeReader{path: skewedRaster(500)}, dir)

	_, err := f.analyzer.AnalyzeIndex(path)
	require.NoError(t, err)

	expected := []string{
		filepath.Join(dir, "rs_metrics_finland_20240401_LAI_distribution_analysis.png"),
		filepath.Join(dir, "rs_metrics_finland_20240401_LAI_statistics.csv"),
		filepath.Join(dir, "rs_metrics_finland_20240401_LAI_quicklook.png"),
	}
	assert.Equal(t, expected, f.analyzer.Artifacts())
	for _, p := range expected {
		assert.FileExists(t, p)
	}

	file, err := os.Open(expected[1])
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recordColumns, rows[0])
	assert.Equal(t, "500", rows[1][0])
	assert.Equal(t, "false", rows[1][len(rows[1])-1])
}

func TestAnalyzeIndexErrors(t *testing.T) {
	nodata := 0.0
	reader := fakeReader{
		"empty_EVI.tif": lineRaster([]float64{0, 0, 0}, &nodata),
	}
	f := newFixture(t, reader, "")

	_, err := f.analyzer.AnalyzeIndex("missing_EVI.tif")
	assert.ErrorIs(t, err, models.ErrRasterIO)

	_, err = f.analyzer.AnalyzeIndex("empty_EVI.tif")
	assert.ErrorIs(t, err, statistics.ErrEmptySample)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AnalysesTotal.WithLabelValues(observability.OutcomeError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.AnalysesTotal.WithLabelValues(observability.OutcomeSuccess)))
}

func TestAnalyzeIndexSinkFailure(t *testing.T) {
	dir := t.TempDir()
	path := "flat_NDWI.tif"
	f := newFixture(t, fakeReader{path: lineRaster([]float64{0.2, 0.2, 0.2, 0.2, 0.2, 0.2}, nil)}, dir)

	// A constant band cannot be plotted; the statistics still come back
	record, err := f.analyzer.AnalyzeIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, record.Stats.Std)
	assert.Nil(t, record.Tests.Shapiro)
	assert.Nil(t, record.Tests.DAgostino)
	assert.Nil(t, record.Tests.Anderson)
	assert.True(t, record.Verdict.IsNormal)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SinkErrorsTotal.WithLabelValues(sinkPlot)))
	assert.NoFileExists(t, filepath.Join(dir, "flat_NDWI_distribution_analysis.png"))
	assert.FileExists(t, filepath.Join(dir, "flat_NDWI_statistics.csv"))

	var sinkEntries, testEntries int
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["sink"] == sinkPlot {
			sinkEntries++
		}
		if e.Level == logrus.WarnLevel && e.Message == "Some normality tests could not run" {
			testEntries++
		}
	}
	assert.Equal(t, 1, sinkEntries)
	assert.Equal(t, 1, testEntries)
}

func TestNewAnalyzerCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := NewAnalyzer(&Params{OutputDir: dir, Reader: fakeReader{}, Out: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.DirExists(t, dir)
}
