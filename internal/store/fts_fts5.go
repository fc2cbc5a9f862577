//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/geoplan/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS geo_codes_fts USING fts5(
			geo_code_id UNINDEXED,
			code,
			label,
			category,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, gc models.GeoCode) error {
	_, _ = tx.Exec(`DELETE FROM geo_codes_fts WHERE geo_code_id = ?`, gc.ID)
	_, err := tx.Exec(`INSERT INTO geo_codes_fts (geo_code_id, code, label, category) VALUES (?, ?, ?, ?)`,
		gc.ID, gc.Code, gc.Label, gc.Category)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id int64) {
	_, _ = tx.Exec(`DELETE FROM geo_codes_fts WHERE geo_code_id = ?`, id)
}

// SearchGeoCodes performs an FTS5 search over code, label and category.
func (db *DB) SearchGeoCodes(ctx context.Context, query string, limit int) ([]models.GeoCode, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+geoCodeColumns+`
		FROM geo_codes_fts f JOIN geo_codes g ON g.id = f.geo_code_id
		WHERE geo_codes_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search geo codes: %w", err)
	}
	return collectGeoCodes(rows)
}
