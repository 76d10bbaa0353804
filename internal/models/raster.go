package models

import (
	"math"
)

// RasterMetadata describes the grid a band was read from
type RasterMetadata struct {
	// Driver is the short name of the format driver (e.g. "GTiff")
	Driver string

	// Width and Height are the raster dimensions in pixels
	Width  int
	Height int

	// BandCount is the number of bands in the dataset
	BandCount int

	// DataType is the band's native pixel type (e.g. "Float32")
	DataType string

	// Projection is the coordinate reference system as WKT, empty if unset
	Projection string

	// GeoTransform maps pixel/line coordinates to georeferenced coordinates.
	// Only meaningful when HasGeoTransform is true.
	GeoTransform    [6]float64
	HasGeoTransform bool
}

// Raster holds a single band's pixel values together with its nodata
// sentinel and the dataset metadata
type Raster struct {
	// Pixels are all band values in row-major order (Width*Height entries)
	Pixels []float64

	// NoData is the declared nodata sentinel, nil when the band has none
	NoData *float64

	// Metadata describes the source dataset
	Metadata RasterMetadata
}

// IsNoData reports whether v matches the raster's nodata sentinel.
// A NaN sentinel matches NaN values. Float32 bands compare in float32, so a
// sentinel such as -9999.99 matches the widened pixel value.
func (r *Raster) IsNoData(v float64) bool {
	if r.NoData == nil {
		return false
	}
	nd := *r.NoData
	if math.IsNaN(nd) {
		return math.IsNaN(v)
	}
	if r.Metadata.DataType == "Float32" {
		return float32(v) == float32(nd)
	}
	return v == nd
}

// ValidValues returns the pixels that are not nodata. Without a sentinel
// every pixel is returned.
func (r *Raster) ValidValues() []float64 {
	if r.NoData == nil {
		out := make([]float64, len(r.Pixels))
		copy(out, r.Pixels)
		return out
	}

	out := make([]float64, 0, len(r.Pixels))
	for _, v := range r.Pixels {
		if !r.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}
