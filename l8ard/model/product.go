package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	productIDSeparator = "_"
	productIDFields    = 7
	compactDateLayout  = "20060102"
)

// ProductID is a decomposed Landsat Collection-2 product identifier such as
// LC08_L2SP_199029_20211216_20211223_02_T1.
type ProductID struct {
	Raw             string
	Platform        string
	ProcessingLevel string
	PathRow         string
	Path            string
	Row             string
	AcquisitionDate time.Time
	ProcessingDate  time.Time
	Collection      string
	Tier            string
}

// ParseProductID splits a product identifier into its fixed-position fields.
// Trailing asset suffixes (e.g. _ST_B10.TIF) and leading key prefixes are ignored.
func ParseProductID(raw string) (ProductID, error) {
	id := strings.TrimSpace(raw)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	parts := strings.Split(id, productIDSeparator)
	if len(parts) < productIDFields {
		return ProductID{}, Configf("product id %q: expected %d fields, got %d", raw, productIDFields, len(parts))
	}
	if len(parts[2]) != 6 {
		return ProductID{}, Configf("product id %q: invalid path/row %q", raw, parts[2])
	}
	acquired, err := time.Parse(compactDateLayout, parts[3])
	if err != nil {
		return ProductID{}, Configf("product id %q: invalid acquisition date %q", raw, parts[3])
	}
	processed, err := time.Parse(compactDateLayout, parts[4])
	if err != nil {
		return ProductID{}, Configf("product id %q: invalid processing date %q", raw, parts[4])
	}
	return ProductID{
		Raw:             strings.Join(parts[:productIDFields], productIDSeparator),
		Platform:        parts[0],
		ProcessingLevel: parts[1],
		PathRow:         parts[2],
		Path:            parts[2][:3],
		Row:             parts[2][3:],
		AcquisitionDate: acquired,
		ProcessingDate:  processed,
		Collection:      parts[5],
		Tier:            parts[6],
	}, nil
}

// String returns the canonical identifier.
func (p ProductID) String() string {
	return p.Raw
}

// AcquisitionDay returns the acquisition date in compact yyyymmdd form.
func (p ProductID) AcquisitionDay() string {
	return p.AcquisitionDate.Format(compactDateLayout)
}

// Year returns the four digit acquisition year.
func (p ProductID) Year() string {
	return fmt.Sprintf("%04d", p.AcquisitionDate.Year())
}

// UniqueID concatenates path/row, collection and tier.
func (p ProductID) UniqueID() string {
	return p.PathRow + p.Collection + p.Tier
}
