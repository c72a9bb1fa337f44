// Package tile resolves Sentinel-2 MGRS tile identifiers into the projection and
// footprint the ARD rasters are aligned to.
package tile

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/example/go-l8ard/l8ard/model"
)

// Registry looks up tile contexts by tile identifier.
type Registry interface {
	Lookup(ctx context.Context, tileID string) (model.TileContext, error)
}

// Static is an in-memory Registry.
type Static struct {
	mu    sync.RWMutex
	tiles map[string]model.TileContext
}

// NewStatic returns a registry holding tiles.
func NewStatic(tiles ...model.TileContext) *Static {
	s := &Static{tiles: make(map[string]model.TileContext, len(tiles))}
	for _, t := range tiles {
		s.tiles[t.TileID] = t
	}
	return s
}

// Add registers a tile from its CRS and upper-left corner.
func (s *Static) Add(tileID, crs string, ulx, uly float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[tileID] = model.TileContext{TileID: tileID, CRS: NormalizeCRS(crs), BBox: model.BBoxFromUpperLeft(ulx, uly)}
}

// Lookup implements Registry.
func (s *Static) Lookup(ctx context.Context, tileID string) (model.TileContext, error) {
	if err := model.ValidateTileID(tileID); err != nil {
		return model.TileContext{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiles[tileID]
	if !ok {
		return model.TileContext{}, fmt.Errorf("tile: %s: %w", tileID, model.ErrTileNotFound)
	}
	return t, nil
}

// NormalizeCRS turns a bare EPSG code ("32631") into "EPSG:32631".
func NormalizeCRS(crs string) string {
	crs = strings.TrimSpace(crs)
	if _, err := strconv.Atoi(crs); err == nil {
		return "EPSG:" + crs
	}
	return crs
}

// Tiles returns the registered tiles sorted by identifier.
func (s *Static) Tiles() []model.TileContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TileContext, 0, len(s.tiles))
	for _, t := range s.tiles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TileID < out[j].TileID })
	return out
}
