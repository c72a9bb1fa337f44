package tile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// LoadGeoJSON reads a Sentinel-2 grid FeatureCollection into a Static registry. Each
// feature carries its tile id (property "tile" or the feature id), "SRS" and the
// upper-left corner in "UL0"/"UL1".
func LoadGeoJSON(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tile: read %s: %w", path, err)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON is LoadGeoJSON over raw bytes.
func ParseGeoJSON(data []byte) (*Static, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("tile: decode grid: %w", err)
	}
	s := NewStatic()
	for i, f := range fc.Features {
		id, _ := propString(f.Properties, "tile")
		if id == "" {
			if sid, ok := f.ID.(string); ok {
				id = sid
			}
		}
		if id == "" {
			return nil, fmt.Errorf("tile: feature %d: missing tile id", i)
		}
		srs, ok := propString(f.Properties, "SRS")
		if !ok {
			return nil, fmt.Errorf("tile: feature %s: missing SRS", id)
		}
		ulx, err := propFloat(f.Properties, "UL0")
		if err != nil {
			return nil, fmt.Errorf("tile: feature %s: %w", id, err)
		}
		uly, err := propFloat(f.Properties, "UL1")
		if err != nil {
			return nil, fmt.Errorf("tile: feature %s: %w", id, err)
		}
		s.Add(id, srs, ulx, uly)
	}
	return s, nil
}

func propString(p geojson.Properties, key string) (string, bool) {
	switch v := p[key].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func propFloat(p geojson.Properties, key string) (float64, error) {
	switch v := p[key].(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("property %s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("property %s missing", key)
}
