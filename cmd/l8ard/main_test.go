package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-l8ard/l8ard"
	"github.com/example/go-l8ard/l8ard/band"
	"github.com/example/go-l8ard/l8ard/model"
	"github.com/example/go-l8ard/l8ard/tile"
)

const productID = "LC08_L2SP_199029_20211216_20211223_02_T1"

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.Configf("bad flag"), exitConfig},
		{fmt.Errorf("wrapped: %w", model.ErrConfiguration), exitConfig},
		{errors.New("boom"), exitFailed},
		{withCode(exitPartial, errors.New("partial")), exitPartial},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
	if withCode(exitFailed, nil) != nil {
		t.Fatalf("expected nil error to stay nil")
	}
}

func TestGroupStatus(t *testing.T) {
	ok := l8ard.BandResult{Band: band.B10, Uploaded: 1}
	failed := l8ard.BandResult{Band: band.QAPixelTIR, Err: errors.New("missing")}

	if err := groupStatus(l8ard.GroupReport{Bands: []l8ard.BandResult{ok, failed}}, false); err != nil {
		t.Fatalf("partial success must not fail without --strict: %v", err)
	}
	if got := exitCode(groupStatus(l8ard.GroupReport{Bands: []l8ard.BandResult{ok, failed}}, true)); got != exitPartial {
		t.Fatalf("expected partial exit code, got %d", got)
	}
	if got := exitCode(groupStatus(l8ard.GroupReport{Bands: []l8ard.BandResult{failed}}, false)); got != exitFailed {
		t.Fatalf("expected failure exit code, got %d", got)
	}
}

func TestGenerateRejectsConflictingModes(t *testing.T) {
	err := newApp().Run(context.Background(), []string{"l8ard", "--only-sr", "--only-tir", "generate", "31TCJ", productID})
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if exitCode(err) != exitConfig {
		t.Fatalf("expected exit code %d", exitConfig)
	}
}

func TestGenerateRequiresArguments(t *testing.T) {
	err := newApp().Run(context.Background(), []string{"l8ard", "generate", "31TCJ"})
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateRequiresRegistry(t *testing.T) {
	t.Setenv("L8ARD_TILE_DB", "")
	t.Setenv("L8ARD_TILE_GEOJSON", "")
	err := newApp().Run(context.Background(), []string{"l8ard", "--no-upload", "--out-dir", t.TempDir(), "generate", "31TCJ", productID})
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTilesImport(t *testing.T) {
	dir := t.TempDir()
	grid := filepath.Join(dir, "grid.geojson")
	data := `{"type":"FeatureCollection","features":[
  {"type":"Feature","id":"31TCJ","geometry":{"type":"Point","coordinates":[1.2,43.6]},
   "properties":{"SRS":"32631","UL0":300000,"UL1":4900020}}]}`
	if err := os.WriteFile(grid, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dbPath := filepath.Join(dir, "tiles.db")
	if err := newApp().Run(context.Background(), []string{"l8ard", "--tile-db", dbPath, "tiles", "import", grid}); err != nil {
		t.Fatalf("tiles import returned error: %v", err)
	}

	db, err := tile.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()
	tc, err := db.Lookup(context.Background(), "31TCJ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if tc.CRS != "EPSG:32631" || tc.BBox != model.BBoxFromUpperLeft(300000, 4900020) {
		t.Fatalf("unexpected tile %s", tc)
	}
}
