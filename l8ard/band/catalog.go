// Package band holds the fixed catalog of Landsat-8 bands turned into ARD and
// the processing modes that select among them.
package band

import (
	"strings"

	"github.com/example/go-l8ard/l8ard/model"
)

// Code identifies one band of a Landsat-8 Collection-2 Level-2 product.
type Code int

const (
	B2 Code = iota + 1
	B3
	B4
	B5
	B6
	B7
	B10
	QAPixelSR
	QAPixelTIR
)

var codeNames = map[Code]string{
	B2:         "B2",
	B3:         "B3",
	B4:         "B4",
	B5:         "B5",
	B6:         "B6",
	B7:         "B7",
	B10:        "B10",
	QAPixelSR:  "QA_PIXEL_SR",
	QAPixelTIR: "QA_PIXEL_TIR",
}

// String returns the canonical band name (e.g. QA_PIXEL_SR).
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseCode converts a canonical band name into a Code.
func ParseCode(name string) (Code, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(name))
	for code, candidate := range codeNames {
		if candidate == trimmed {
			return code, nil
		}
	}
	return 0, model.Configf("unknown band %q", name)
}

// Resampling is the warp resampling method, spelled as gdalwarp expects it.
type Resampling string

const (
	Nearest  Resampling = "near"
	Bilinear Resampling = "bilinear"
)

// Class is the measurement class of a band; it drives the output path segment.
type Class int

const (
	Optical Class = iota + 1
	Thermal
)

// Segment returns the top-level output path segment of the class.
func (c Class) Segment() string {
	switch c {
	case Optical:
		return "OPTICAL"
	case Thermal:
		return "TIR"
	}
	return ""
}

// Descriptor is the immutable processing recipe of one band.
type Descriptor struct {
	Code             Code
	Alias            string
	SourceItem       string
	Resampling       Resampling
	ResolutionMeters int
	Class            Class
	// HasNodata is false for the raw thermal quality band, which keeps the full bit-field.
	HasNodata bool
	Nodata    float64
	// Rescale applies the surface reflectance scale/offset during finishing.
	Rescale bool
	// DecodeMask turns the QA_PIXEL bit-field into the 0/1/255 cloud mask.
	DecodeMask bool
}

// Quality reports whether the band is a categorical quality band.
func (d Descriptor) Quality() bool {
	return d.Code == QAPixelSR || d.Code == QAPixelTIR
}

func reflective(code Code, alias string, res int) Descriptor {
	return Descriptor{
		Code:             code,
		Alias:            alias,
		SourceItem:       "SR_" + code.String(),
		Resampling:       Bilinear,
		ResolutionMeters: res,
		Class:            Optical,
		HasNodata:        true,
		Nodata:           0,
		Rescale:          true,
	}
}

// DescriptorFor returns the descriptor of a band code.
func DescriptorFor(code Code) (Descriptor, error) {
	switch code {
	case B2:
		return reflective(B2, "B02", 10), nil
	case B3:
		return reflective(B3, "B03", 10), nil
	case B4:
		return reflective(B4, "B04", 10), nil
	case B5:
		return reflective(B5, "B08", 10), nil
	case B6:
		return reflective(B6, "B11", 20), nil
	case B7:
		return reflective(B7, "B12", 20), nil
	case B10:
		return Descriptor{
			Code:             B10,
			Alias:            "B10",
			SourceItem:       "ST_B10",
			Resampling:       Bilinear,
			ResolutionMeters: 30,
			Class:            Thermal,
			HasNodata:        true,
			Nodata:           0,
		}, nil
	case QAPixelSR:
		return Descriptor{
			Code:             QAPixelSR,
			Alias:            "MASK",
			SourceItem:       "QA_PIXEL",
			Resampling:       Nearest,
			ResolutionMeters: 20,
			Class:            Optical,
			HasNodata:        true,
			Nodata:           255,
			DecodeMask:       true,
		}, nil
	case QAPixelTIR:
		return Descriptor{
			Code:             QAPixelTIR,
			Alias:            "QA_PIXEL",
			SourceItem:       "QA_PIXEL",
			Resampling:       Nearest,
			ResolutionMeters: 30,
			Class:            Thermal,
		}, nil
	}
	return Descriptor{}, model.Configf("unknown band code %d", int(code))
}

// All returns every band code in declaration order.
func All() []Code {
	return []Code{B2, B3, B4, B5, B6, B7, B10, QAPixelSR, QAPixelTIR}
}
