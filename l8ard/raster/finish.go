package raster

import (
	"fmt"
	"math"

	"github.com/example/go-l8ard/l8ard/band"
)

// Sentinel-2 style scaling of Landsat Collection-2 surface reflectance.
var (
	scalingFactor   = 10000.0
	reflectanceGain = 0.0000275 * scalingFactor
	reflectanceBias = -0.2 * scalingFactor
)

// QA_PIXEL bits used by the cloud mask.
const (
	qaFill   = 1 << 0
	qaCirrus = 1 << 2
	qaCloud  = 1 << 3
	qaShadow = 1 << 4
	qaSnow   = 1 << 5
)

// Mask values of the decoded optical quality band.
const (
	MaskCloudy = 0
	MaskClear  = 1
	MaskNodata = 255
)

// RescaleValue converts a surface reflectance digital number to the ARD scale,
// clamped to the UInt16 range.
func RescaleValue(v float64) uint16 {
	scaled := v*reflectanceGain + reflectanceBias
	if scaled < 0 || math.IsNaN(scaled) {
		return 0
	}
	if scaled > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(scaled)
}

// Rescale returns a UInt16 copy of g with the reflectance scale applied.
func Rescale(g *Grid) *Grid {
	out := derive(g, UInt16)
	for i, v := range g.Pixels {
		out.Pixels[i] = float64(RescaleValue(v))
	}
	return out
}

// MaskValue decodes one QA_PIXEL bit-field value into 0 (cloudy), 1 (clear) or 255 (fill).
func MaskValue(qa uint16) uint8 {
	if qa&qaFill != 0 {
		return MaskNodata
	}
	if qa&(qaCirrus|qaCloud|qaShadow|qaSnow) == 0 {
		return MaskClear
	}
	return MaskCloudy
}

// DecodeMask returns a Byte grid holding the decoded cloud mask of a QA_PIXEL grid.
func DecodeMask(g *Grid) *Grid {
	out := derive(g, Byte)
	for i, v := range g.Pixels {
		out.Pixels[i] = float64(MaskValue(uint16(v)))
	}
	return out
}

// Finish applies the band specific transform to a clipped grid and returns the grid
// to write together with its nodata value.
func Finish(d band.Descriptor, g *Grid) (*Grid, *float64, error) {
	if g == nil || len(g.Pixels) != g.Len() {
		return nil, nil, fmt.Errorf("raster: grid size mismatch for band %s", d.Code)
	}
	var out *Grid
	switch {
	case d.Rescale:
		out = Rescale(g)
	case d.DecodeMask:
		out = DecodeMask(g)
	default:
		out = g
	}
	if !d.HasNodata {
		return out, nil, nil
	}
	return out, Float(d.Nodata), nil
}

// BlockSize returns the GeoTIFF tile size of a band: 1024 for the 10 m reflective bands.
func BlockSize(code band.Code) int {
	switch code {
	case band.B2, band.B3, band.B4, band.B5:
		return 1024
	}
	return 512
}

func derive(g *Grid, dt DataType) *Grid {
	return &Grid{
		Width:    g.Width,
		Height:   g.Height,
		DataType: dt,
		Pixels:   make([]float64, len(g.Pixels)),
		Georef:   g.Georef,
	}
}
