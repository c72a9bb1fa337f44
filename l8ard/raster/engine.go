// Package raster wraps the warp/mosaic/clip engine used by the ARD pipeline and
// implements the band finishing transforms applied to clipped pixels.
package raster

import (
	"context"

	"github.com/example/go-l8ard/l8ard/band"
	"github.com/paulmach/orb"
)

// DataType names a pixel type the way GDAL spells it.
type DataType string

const (
	Byte    DataType = "Byte"
	Int16   DataType = "Int16"
	UInt16  DataType = "UInt16"
	Int32   DataType = "Int32"
	UInt32  DataType = "UInt32"
	Float32 DataType = "Float32"
	Float64 DataType = "Float64"
)

// ReprojectOptions controls a single reprojection.
type ReprojectOptions struct {
	TargetCRS        string
	ResolutionMeters int
	Resampling       band.Resampling
	// ForcedNodata, when set, is written where no source pixel contributes.
	ForcedNodata *float64
}

// WriteOptions controls how a finished grid is written.
type WriteOptions struct {
	BlockSize int
	Nodata    *float64
	Tags      map[string]string
}

// Grid is a single band raster held in memory, with the georeferencing of the file it
// was read from.
type Grid struct {
	Width    int
	Height   int
	DataType DataType
	Pixels   []float64
	Nodata   *float64
	// Georef carries the projection and geotransform entries of the source header.
	Georef map[string]string
}

// Len returns the number of pixels of the grid.
func (g *Grid) Len() int {
	return g.Width * g.Height
}

// Engine is the external numeric engine. Implementations must not retain paths after return.
type Engine interface {
	Reproject(ctx context.Context, src, dst string, opts ReprojectOptions) error
	Mosaic(ctx context.Context, srcs []string, dst string) error
	Clip(ctx context.Context, src, dst string, bbox orb.Bound) error
	ReadGrid(ctx context.Context, src string) (*Grid, error)
	WriteGrid(ctx context.Context, g *Grid, dst string, opts WriteOptions) error
}

// Float returns a pointer to v, for optional nodata values.
func Float(v float64) *float64 {
	return &v
}
