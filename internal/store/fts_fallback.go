//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/geoplan/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; geo code search uses LIKE on the geo_codes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ models.GeoCode) error { return nil }

func ftsDelete(_ *sql.Tx, _ int64) {}

// SearchGeoCodes performs a LIKE-based search over code, label and category.
func (db *DB) SearchGeoCodes(ctx context.Context, query string, limit int) ([]models.GeoCode, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+geoCodeColumns+` FROM geo_codes g
		WHERE g.code LIKE ? OR g.label LIKE ? OR g.category LIKE ?
		ORDER BY g.code
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search geo codes: %w", err)
	}
	return collectGeoCodes(rows)
}
