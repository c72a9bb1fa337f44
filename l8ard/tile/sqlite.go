package tile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/example/go-l8ard/l8ard/model"
)

// SQLite is a Registry backed by an s2_tiles table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the tile database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS s2_tiles (
  tile_id TEXT PRIMARY KEY,
  srs TEXT NOT NULL,
  ul_x REAL NOT NULL,
  ul_y REAL NOT NULL
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Put inserts or replaces a tile.
func (s *SQLite) Put(ctx context.Context, tileID, srs string, ulx, uly float64) error {
	if err := model.ValidateTileID(tileID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO s2_tiles (tile_id, srs, ul_x, ul_y) VALUES (?, ?, ?, ?)`,
		tileID, srs, ulx, uly,
	)
	if err != nil {
		return fmt.Errorf("tile: store %s: %w", tileID, err)
	}
	return nil
}

// Lookup implements Registry.
func (s *SQLite) Lookup(ctx context.Context, tileID string) (model.TileContext, error) {
	if err := model.ValidateTileID(tileID); err != nil {
		return model.TileContext{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT srs, ul_x, ul_y FROM s2_tiles WHERE tile_id = ?`, tileID)
	var (
		srs      string
		ulx, uly float64
	)
	if err := row.Scan(&srs, &ulx, &uly); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TileContext{}, fmt.Errorf("tile: %s: %w", tileID, model.ErrTileNotFound)
		}
		return model.TileContext{}, fmt.Errorf("tile: lookup %s: %w", tileID, err)
	}
	return model.TileContext{TileID: tileID, CRS: NormalizeCRS(srs), BBox: model.BBoxFromUpperLeft(ulx, uly)}, nil
}
