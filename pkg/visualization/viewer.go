package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"rsmetrics/internal/models"
)

// Viewer renders and slices the pixel grid of a single-band index raster.
// Pixels matching the raster's nodata sentinel are treated as holes.
type Viewer struct {
	// raster holds the band values in row-major order
	raster *models.Raster

	// dimensions of the grid
	width  int
	height int
}

// NewViewer creates a viewer over the grid of r
func NewViewer(r *models.Raster) *Viewer {
	return &Viewer{
		raster: r,
		width:  r.Metadata.Width,
		height: r.Metadata.Height,
	}
}

// Quicklook renders the grid as a 16-bit grayscale image.
//
// Valid values are stretched linearly between the band minimum (darkest)
// and maximum (brightest) into the range 1..65535. Nodata pixels are
// rendered black (0) so holes stay distinguishable from the band minimum.
// A band whose valid pixels are all equal is rendered mid-gray.
func (v *Viewer) Quicklook() (image.Image, error) {
	if err := v.checkGrid(); err != nil {
		return nil, err
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range v.raster.Pixels {
		if v.raster.IsNoData(p) || math.IsNaN(p) {
			continue
		}
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if lo > hi {
		return nil, fmt.Errorf("raster has no valid pixels")
	}

	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			p := v.raster.Pixels[y*v.width+x]
			if v.raster.IsNoData(p) || math.IsNaN(p) {
				continue
			}

			value := uint16(32768)
			if hi > lo {
				value = uint16(1 + math.Round((p-lo)/(hi-lo)*65534))
			}
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return img, nil
}

// ExtractProfile extracts a transect through the grid: a full row when
// axis is "row", a full column when axis is "col". Nodata pixels are
// returned as NaN.
func (v *Viewer) ExtractProfile(axis string, position int) ([]float64, error) {
	if err := v.checkGrid(); err != nil {
		return nil, err
	}
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var profile []float64

	switch axis {
	case "row":
		if position >= v.height {
			return nil, fmt.Errorf("row %d exceeds height %d", position, v.height)
		}
		profile = make([]float64, v.width)
		for x := 0; x < v.width; x++ {
			profile[x] = v.valueAt(x, position)
		}

	case "col":
		if position >= v.width {
			return nil, fmt.Errorf("column %d exceeds width %d", position, v.width)
		}
		profile = make([]float64, v.height)
		for y := 0; y < v.height; y++ {
			profile[y] = v.valueAt(position, y)
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be row or col)", axis)
	}

	return profile, nil
}

// ExtractWindow extracts a rectangular window of the grid in row-major
// order. Nodata pixels are returned as NaN.
func (v *Viewer) ExtractWindow(startX, startY, sizeX, sizeY int) ([]float64, error) {
	// Validate parameters
	if err := v.checkGrid(); err != nil {
		return nil, err
	}

	if startX < 0 || startY < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("window dimensions must be positive")
	}

	if startX+sizeX > v.width || startY+sizeY > v.height {
		return nil, fmt.Errorf("window extends beyond raster boundaries")
	}

	window := make([]float64, sizeX*sizeY)
	for y := 0; y < sizeY; y++ {
		for x := 0; x < sizeX; x++ {
			window[y*sizeX+x] = v.valueAt(startX+x, startY+y)
		}
	}

	return window, nil
}

// SaveQuicklook renders the quicklook and saves it as a PNG image
func (v *Viewer) SaveQuicklook(filename string) error {
	img, err := v.Quicklook()
	if err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// checkGrid verifies that the pixel slice fills the declared grid
func (v *Viewer) checkGrid() error {
	if v.width <= 0 || v.height <= 0 || len(v.raster.Pixels) != v.width*v.height {
		return fmt.Errorf("grid %dx%d does not match %d pixels", v.width, v.height, len(v.raster.Pixels))
	}
	return nil
}

func (v *Viewer) valueAt(x, y int) float64 {
	p := v.raster.Pixels[y*v.width+x]
	if v.raster.IsNoData(p) {
		return math.NaN()
	}
	return p
}
