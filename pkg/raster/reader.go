// Package raster reads single-band index rasters through GDAL.
package raster

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"rsmetrics/internal/models"
)

var registerOnce sync.Once

// Reader reads the band of single-band rasters. Datasets are opened and
// closed inside each call.
type Reader struct{}

// NewReader registers the GDAL drivers and returns a reader
func NewReader() *Reader {
	registerOnce.Do(godal.RegisterAll)
	return &Reader{}
}

// ReadBand reads every pixel of the raster at path together with its
// nodata sentinel and dataset metadata.
//
// Errors wrap models.ErrRasterIO when the file cannot be opened or read,
// and models.ErrRasterFormat when the dataset does not have exactly one band.
func (r *Reader) ReadBand(path string) (*models.Raster, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrRasterIO, path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) != 1 {
		return nil, fmt.Errorf("%w: %s has %d bands", models.ErrRasterFormat, path, len(bands))
	}
	band := bands[0]

	st := band.Structure()
	if st.SizeX <= 0 || st.SizeY <= 0 {
		return nil, fmt.Errorf("%w: %s has an empty grid", models.ErrRasterFormat, path)
	}

	pixels := make([]float64, st.SizeX*st.SizeY)
	if err := band.Read(0, 0, pixels, st.SizeX, st.SizeY); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrRasterIO, path, err)
	}

	raster := &models.Raster{
		Pixels: pixels,
		Metadata: models.RasterMetadata{
			Driver:     ds.Driver().ShortName(),
			Width:      st.SizeX,
			Height:     st.SizeY,
			BandCount:  len(bands),
			DataType:   st.DataType.String(),
			Projection: ds.Projection(),
		},
	}

	if nd, ok := band.NoData(); ok {
		raster.NoData = &nd
	}

	if gt, err := ds.GeoTransform(); err == nil {
		raster.Metadata.GeoTransform = gt
		raster.Metadata.HasGeoTransform = true
	}

	return raster, nil
}
