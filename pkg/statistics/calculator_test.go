package statistics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsmetrics/internal/models"
)

const tolerance = 1e-9

// fakeReader serves in-memory rasters keyed by path
type fakeReader map[string]*models.Raster

func (f fakeReader) ReadBand(path string) (*models.Raster, error) {
	r, ok := f[path]
	if !ok {
		return nil, models.ErrRasterIO
	}
	return r, nil
}

func TestCalculateBasicStats(t *testing.T) {
	s, err := CalculateBasicStats([]float64{4, 1, 3, 2})
	require.NoError(t, err)

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Mean, tolerance)
	assert.InDelta(t, 2.5, s.Median, tolerance)
	assert.InDelta(t, 1.25, s.Var, tolerance)
	assert.InDelta(t, math.Sqrt(1.25), s.Std, tolerance)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 3.0, s.Range, tolerance)

	// Linear interpolation between order statistics
	assert.InDelta(t, 1.75, s.Percentile25, tolerance)
	assert.InDelta(t, 3.25, s.Percentile75, tolerance)
	assert.InDelta(t, 1.5, s.IQR, tolerance)

	// Symmetric and flat: zero skewness, platykurtic
	assert.InDelta(t, 0.0, s.Skewness, tolerance)
	assert.InDelta(t, -1.36, s.Kurtosis, tolerance)
}

func TestCalculateBasicStatsShape(t *testing.T) {
	// One large outlier produces a right-skewed sample
	s, err := CalculateBasicStats([]float64{1, 1, 1, 1, 10})
	require.NoError(t, err)

	assert.InDelta(t, 2.8, s.Mean, tolerance)
	assert.InDelta(t, 1.0, s.Median, tolerance)
	assert.InDelta(t, 12.96, s.Var, tolerance)
	assert.InDelta(t, 1.5, s.Skewness, 1e-9)
	assert.InDelta(t, 0.25, s.Kurtosis, 1e-9)
}

func TestCalculateBasicStatsConsistency(t *testing.T) {
	samples := [][]float64{
		{0.3},
		{-2, 5},
		{0.12, 0.45, 0.33, 0.91, 0.05, 0.66, 0.72},
		{1e6, -1e6, 3.5, 0, 42, 42, 42},
	}

	for _, values := range samples {
		s, err := CalculateBasicStats(values)
		require.NoError(t, err)

		assert.Equal(t, len(values), s.Count)
		assert.InDelta(t, s.Max-s.Min, s.Range, tolerance)
		assert.InDelta(t, s.Percentile75-s.Percentile25, s.IQR, tolerance)
		assert.LessOrEqual(t, s.Min, s.Percentile25)
		assert.LessOrEqual(t, s.Percentile75, s.Max)
	}
}

func TestCalculateBasicStatsConstant(t *testing.T) {
	s, err := CalculateBasicStats([]float64{0.7, 0.7, 0.7, 0.7})
	require.NoError(t, err)

	expected := models.BasicStats{
		Count:        4,
		Mean:         0.7,
		Median:       0.7,
		Min:          0.7,
		Max:          0.7,
		Percentile25: 0.7,
		Percentile75: 0.7,
	}
	assert.Equal(t, expected, s)
}

func TestCalculateBasicStatsEmpty(t *testing.T) {
	_, err := CalculateBasicStats(nil)
	assert.ErrorIs(t, err, ErrEmptySample)

	_, err = CalculateBasicStats([]float64{})
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestCalculateBasicStatsDoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, err := CalculateBasicStats(values)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestLoadRasterData(t *testing.T) {
	nodata := -9999.0
	meta := models.RasterMetadata{Driver: "GTiff", Width: 3, Height: 2, BandCount: 1}
	reader := fakeReader{
		"with_nodata.tif": {
			Pixels:   []float64{1, -9999, 2, 3, -9999, 4},
			NoData:   &nodata,
			Metadata: meta,
		},
		"without_nodata.tif": {
			Pixels:   []float64{1, -9999, 2, 3, -9999, 4},
			Metadata: meta,
		},
	}
	calc := NewCalculator(reader)

	t.Run("nodata excluded", func(t *testing.T) {
		values, nd, m, err := calc.LoadRasterData("with_nodata.tif")
		require.NoError(t, err)
		require.NotNil(t, nd)
		assert.Equal(t, -9999.0, *nd)
		assert.Equal(t, []float64{1, 2, 3, 4}, values)
		assert.Equal(t, meta, m)
	})

	t.Run("no sentinel keeps every pixel", func(t *testing.T) {
		values, nd, _, err := calc.LoadRasterData("without_nodata.tif")
		require.NoError(t, err)
		assert.Nil(t, nd)
		assert.Equal(t, []float64{1, -9999, 2, 3, -9999, 4}, values)
	})

	t.Run("read failure", func(t *testing.T) {
		_, _, _, err := calc.LoadRasterData("missing.tif")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrRasterIO))
		assert.Contains(t, err.Error(), "missing.tif")
	})
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{25, 20},
		{50, 30},
		{60, 34},
		{100, 50},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, percentile(sorted, tt.p), tolerance, "p=%v", tt.p)
	}

	assert.Equal(t, 7.0, percentile([]float64{7}, 25))
}
