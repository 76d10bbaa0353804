// Package statistics computes descriptive statistics and normality tests
// over the valid pixel values of index rasters.
package statistics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"rsmetrics/internal/models"
)

var (
	// ErrEmptySample is returned when there are no values to describe.
	// An empty sample is not a valid statistical sample, so no NaN
	// statistics are produced for it.
	ErrEmptySample = errors.New("empty sample")

	// ErrZeroVariance is returned by tests that are undefined for
	// constant samples
	ErrZeroVariance = errors.New("sample has zero variance")

	// ErrSampleSize is returned when a test does not support the sample size
	ErrSampleSize = errors.New("unsupported sample size")
)

// RasterReader reads the first band of a raster file
type RasterReader interface {
	ReadBand(path string) (*models.Raster, error)
}

// Calculator loads raster samples and computes basic statistics
type Calculator struct {
	reader RasterReader
}

// NewCalculator creates a calculator that loads rasters through reader
func NewCalculator(reader RasterReader) *Calculator {
	return &Calculator{reader: reader}
}

// LoadRaster reads the raster at path
func (c *Calculator) LoadRaster(path string) (*models.Raster, error) {
	r, err := c.reader.ReadBand(path)
	if err != nil {
		return nil, fmt.Errorf("load raster %s: %w", path, err)
	}
	return r, nil
}

// LoadRasterData reads the raster at path and returns its valid values,
// the nodata sentinel (nil if the band declares none) and the dataset
// metadata. Pixels equal to the sentinel are excluded; without a sentinel
// all pixels are returned in row-major order.
func (c *Calculator) LoadRasterData(path string) ([]float64, *float64, models.RasterMetadata, error) {
	r, err := c.LoadRaster(path)
	if err != nil {
		return nil, nil, models.RasterMetadata{}, err
	}
	return r.ValidValues(), r.NoData, r.Metadata, nil
}

// CalculateBasicStats computes population statistics over values.
//
// Variance and standard deviation are not sample-corrected, percentiles
// interpolate linearly between order statistics, skewness is the third
// standardized moment and kurtosis is the excess fourth standardized
// moment (0 for a normal distribution).
//
// Constant input yields zero spread, and skewness and kurtosis are
// reported as 0 by convention. Empty input returns ErrEmptySample.
func CalculateBasicStats(values []float64) (models.BasicStats, error) {
	n := len(values)
	if n == 0 {
		return models.BasicStats{}, ErrEmptySample
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	median, err := mstats.Median(sorted)
	if err != nil {
		return models.BasicStats{}, fmt.Errorf("median: %w", err)
	}

	s := models.BasicStats{
		Count:        n,
		Median:       median,
		Min:          sorted[0],
		Max:          sorted[n-1],
		Percentile25: percentile(sorted, 25),
		Percentile75: percentile(sorted, 75),
	}
	s.Range = s.Max - s.Min
	s.IQR = s.Percentile75 - s.Percentile25

	if s.Min == s.Max {
		// 0/0 moments; report the documented convention instead of NaN
		s.Mean = s.Min
		s.Median = s.Min
		return s, nil
	}

	s.Mean, s.Var = stat.PopMeanVariance(values, nil)
	s.Std = math.Sqrt(s.Var)
	s.Skewness, s.Kurtosis = shapeMoments(values)

	return s, nil
}

// shapeMoments returns the bias-uncorrected skewness and excess kurtosis
func shapeMoments(values []float64) (skewness, kurtosis float64) {
	m2 := stat.Moment(2, values, nil)
	if m2 == 0 {
		return 0, 0
	}
	m3 := stat.Moment(3, values, nil)
	m4 := stat.Moment(4, values, nil)
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

// percentile returns the p-th percentile of sorted data, interpolating
// linearly between the two nearest ranks
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	h := float64(n-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
