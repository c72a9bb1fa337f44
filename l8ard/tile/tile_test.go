package tile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-l8ard/l8ard/model"
)

var wantBBox = orb.Bound{Min: orb.Point{300000, 4790220}, Max: orb.Point{409800, 4900020}}

func TestStatic(t *testing.T) {
	reg := NewStatic()
	reg.Add("31TCJ", "32631", 300000, 4900020)

	got, err := reg.Lookup(context.Background(), "31TCJ")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32631", got.CRS)
	assert.Equal(t, wantBBox, got.BBox)

	_, err = reg.Lookup(context.Background(), "32TCJ")
	assert.ErrorIs(t, err, model.ErrTileNotFound)

	_, err = reg.Lookup(context.Background(), "bad")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestSQLite(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tiles.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Put(ctx, "31TCJ", "EPSG:32631", 300000, 4900020))
	require.NoError(t, db.Put(ctx, "31TCJ", "32631", 300000, 4900020))

	got, err := db.Lookup(ctx, "31TCJ")
	require.NoError(t, err)
	assert.Equal(t, model.TileContext{TileID: "31TCJ", CRS: "EPSG:32631", BBox: wantBBox}, got)

	_, err = db.Lookup(ctx, "31TDJ")
	assert.True(t, errors.Is(err, model.ErrTileNotFound), "got %v", err)

	assert.ErrorIs(t, db.Put(ctx, "31tcj", "32631", 0, 0), model.ErrConfiguration)
}

const grid = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "31TCJ", "geometry": {"type": "Point", "coordinates": [1.2, 43.6]},
     "properties": {"SRS": "32631", "UL0": 300000, "UL1": 4900020}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [2.5, 43.6]},
     "properties": {"tile": "31TDJ", "SRS": "EPSG:32631", "UL0": "399960", "UL1": "4900020"}}
  ]
}`

func TestParseGeoJSON(t *testing.T) {
	reg, err := ParseGeoJSON([]byte(grid))
	require.NoError(t, err)

	got, err := reg.Lookup(context.Background(), "31TCJ")
	require.NoError(t, err)
	assert.Equal(t, wantBBox, got.BBox)
	assert.Equal(t, "EPSG:32631", got.CRS)

	got, err = reg.Lookup(context.Background(), "31TDJ")
	require.NoError(t, err)
	assert.Equal(t, 399960.0, got.BBox.Min.X())
}

func TestParseGeoJSONErrors(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"SRS":"32631","UL0":1}}]}`))
	assert.Error(t, err)

	_, err = ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","id":"31TCJ","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"SRS":"32631","UL0":1}}]}`))
	assert.ErrorContains(t, err, "UL1")

	_, err = ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestStaticTiles(t *testing.T) {
	reg, err := ParseGeoJSON([]byte(grid))
	require.NoError(t, err)
	tiles := reg.Tiles()
	require.Len(t, tiles, 2)
	assert.Equal(t, "31TCJ", tiles[0].TileID)
	assert.Equal(t, "31TDJ", tiles[1].TileID)
}
