package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsmetrics/internal/models"
)

const utm35N = `PROJCS["WGS 84 / UTM zone 35N",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",27],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",0],UNIT["metre",1]]`

func TestReadBandRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rs_metrics_finland_20240401_EVI.tif")
	nodata := -9999.0
	gt := [6]float64{500000, 10, 0, 7000000, 0, -10}

	src := &models.Raster{
		Pixels: []float64{
			0.25, 0.5, -9999,
			0.75, -9999, 1.5,
		},
		NoData: &nodata,
		Metadata: models.RasterMetadata{
			Width:           3,
			Height:          2,
			Projection:      utm35N,
			GeoTransform:    gt,
			HasGeoTransform: true,
		},
	}
	require.NoError(t, WriteGeoTIFF(path, src))

	r, err := NewReader().ReadBand(path)
	require.NoError(t, err)

	assert.Equal(t, src.Pixels, r.Pixels)
	require.NotNil(t, r.NoData)
	assert.Equal(t, nodata, *r.NoData)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.5}, r.ValidValues())

	assert.Equal(t, "GTiff", r.Metadata.Driver)
	assert.Equal(t, 3, r.Metadata.Width)
	assert.Equal(t, 2, r.Metadata.Height)
	assert.Equal(t, 1, r.Metadata.BandCount)
	assert.Equal(t, "Float32", r.Metadata.DataType)
	assert.True(t, r.Metadata.HasGeoTransform)
	assert.Equal(t, gt, r.Metadata.GeoTransform)
	assert.Contains(t, r.Metadata.Projection, "UTM zone 35N")
}

func TestReadBandInexactNoData(t *testing.T) {
	// -9999.99 has no exact float32 form; the stored pixels are rounded
	path := filepath.Join(t.TempDir(), "lai.tif")
	nodata := -9999.99
	src := &models.Raster{
		Pixels:   []float64{nodata, 1.5, 2.5, nodata},
		NoData:   &nodata,
		Metadata: models.RasterMetadata{Width: 2, Height: 2},
	}
	require.NoError(t, WriteGeoTIFF(path, src))

	r, err := NewReader().ReadBand(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, r.ValidValues())
}

func TestReadBandWithoutNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msi.tif")
	src := &models.Raster{
		Pixels:   []float64{1, 2, 3, 4},
		Metadata: models.RasterMetadata{Width: 2, Height: 2},
	}
	require.NoError(t, WriteGeoTIFF(path, src))

	r, err := NewReader().ReadBand(path)
	require.NoError(t, err)
	assert.Nil(t, r.NoData)
	assert.Equal(t, []float64{1, 2, 3, 4}, r.ValidValues())
}

func TestReadBandNaNNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lai.tif")
	nan := math.NaN()
	src := &models.Raster{
		Pixels:   []float64{1, math.NaN(), 2, math.NaN()},
		NoData:   &nan,
		Metadata: models.RasterMetadata{Width: 4, Height: 1},
	}
	require.NoError(t, WriteGeoTIFF(path, src))

	r, err := NewReader().ReadBand(path)
	require.NoError(t, err)
	require.NotNil(t, r.NoData)
	assert.True(t, math.IsNaN(*r.NoData))
	assert.Equal(t, []float64{1, 2}, r.ValidValues())
}

func TestReadBandErrors(t *testing.T) {
	reader := NewReader()

	t.Run("missing file", func(t *testing.T) {
		_, err := reader.ReadBand(filepath.Join(t.TempDir(), "missing.tif"))
		assert.ErrorIs(t, err, models.ErrRasterIO)
	})

	t.Run("multi-band dataset", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rgb.tif")
		ds, err := godal.Create(godal.GTiff, path, 3, godal.Byte, 4, 4)
		require.NoError(t, err)
		require.NoError(t, ds.Close())

		_, err = reader.ReadBand(path)
		assert.ErrorIs(t, err, models.ErrRasterFormat)
	})
}

func TestWriteGeoTIFFShapeMismatch(t *testing.T) {
	err := WriteGeoTIFF(filepath.Join(t.TempDir(), "bad.tif"), &models.Raster{
		Pixels:   []float64{1, 2, 3},
		Metadata: models.RasterMetadata{Width: 2, Height: 2},
	})
	assert.ErrorIs(t, err, models.ErrRasterFormat)
}
