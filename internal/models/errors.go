package models

import "errors"

var (
	// ErrRasterIO is returned when a raster file cannot be opened or read
	ErrRasterIO = errors.New("raster i/o error")

	// ErrRasterFormat is returned when a file is not a valid single-band raster
	ErrRasterFormat = errors.New("not a single-band raster")
)
