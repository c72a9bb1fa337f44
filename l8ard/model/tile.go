package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// TileExtent is the side length, in target CRS units, of a Sentinel-2 MGRS tile.
const TileExtent = 109800

// TileContext holds the output projection and footprint of one grid tile.
type TileContext struct {
	TileID string
	CRS    string
	BBox   orb.Bound
}

// BBoxFromUpperLeft returns the tile footprint anchored at its upper-left corner.
func BBoxFromUpperLeft(ulx, uly float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{ulx, uly - TileExtent},
		Max: orb.Point{ulx + TileExtent, uly},
	}
}

// Extent returns the bounding box as (xmin, ymin, xmax, ymax).
func (t TileContext) Extent() [4]float64 {
	return [4]float64{t.BBox.Min.X(), t.BBox.Min.Y(), t.BBox.Max.X(), t.BBox.Max.Y()}
}

// ValidateTileID checks the five character MGRS tile identifier shape (e.g. 31TCJ).
func ValidateTileID(tileID string) error {
	if len(tileID) != 5 {
		return Configf("tile id %q: expected 5 characters", tileID)
	}
	for i, r := range tileID {
		switch {
		case i < 2 && (r < '0' || r > '9'):
			return Configf("tile id %q: zone must be numeric", tileID)
		case i >= 2 && (r < 'A' || r > 'Z'):
			return Configf("tile id %q: band and square letters must be upper case", tileID)
		}
	}
	return nil
}

// String renders the tile context for logs.
func (t TileContext) String() string {
	e := t.Extent()
	return fmt.Sprintf("%s %s [%.0f %.0f %.0f %.0f]", t.TileID, t.CRS, e[0], e[1], e[2], e[3])
}
