package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"rsmetrics/internal/models"
)

// WriteGeoTIFF writes r as a single-band Float32 GeoTIFF. The nodata
// sentinel, geotransform and projection are written when set.
func WriteGeoTIFF(path string, r *models.Raster) error {
	registerOnce.Do(godal.RegisterAll)

	w, h := r.Metadata.Width, r.Metadata.Height
	if w*h != len(r.Pixels) {
		return fmt.Errorf("%w: %d pixels do not fill a %dx%d grid", models.ErrRasterFormat, len(r.Pixels), w, h)
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, w, h)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", models.ErrRasterIO, path, err)
	}

	band := ds.Bands()[0]
	if r.NoData != nil {
		if err := band.SetNoData(*r.NoData); err != nil {
			ds.Close()
			return fmt.Errorf("set nodata: %w", err)
		}
	}
	if r.Metadata.HasGeoTransform {
		if err := ds.SetGeoTransform(r.Metadata.GeoTransform); err != nil {
			ds.Close()
			return fmt.Errorf("set geotransform: %w", err)
		}
	}
	if r.Metadata.Projection != "" {
		if err := ds.SetProjection(r.Metadata.Projection); err != nil {
			ds.Close()
			return fmt.Errorf("set projection: %w", err)
		}
	}

	if err := band.Write(0, 0, r.Pixels, w, h); err != nil {
		ds.Close()
		return fmt.Errorf("%w: write %s: %v", models.ErrRasterIO, path, err)
	}

	// Close flushes the dataset to disk
	if err := ds.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", models.ErrRasterIO, path, err)
	}
	return nil
}
