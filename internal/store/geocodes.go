package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

const geoCodeColumns = `g.id, g.code, g.label, g.category, g.metadata, g.created_at`

// CreateGeoCode stores a new geo code. Codes are unique.
func (db *DB) CreateGeoCode(ctx context.Context, gc models.GeoCode) (*models.GeoCode, error) {
	gc.Code = strings.TrimSpace(gc.Code)
	if gc.Code == "" {
		return nil, fmt.Errorf("%w: code is required", apperr.ErrValidation)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO geo_codes (code, label, category, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, gc.Code, gc.Label, gc.Category, gc.Metadata, time.Now().UTC())
	if isUniqueViolation(err) {
		return nil, apperr.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("store: create geo code: %w", err)
	}
	gc.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create geo code: %w", err)
	}
	if err := ftsUpsert(tx, gc); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return db.GetGeoCode(ctx, gc.ID)
}

// GetGeoCode returns one geo code by id.
func (db *DB) GetGeoCode(ctx context.Context, id int64) (*models.GeoCode, error) {
	gc, err := scanGeoCode(db.conn.QueryRowContext(ctx, `SELECT `+geoCodeColumns+` FROM geo_codes g WHERE g.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get geo code: %w", err)
	}
	return gc, nil
}

// ListGeoCodes returns all geo codes, optionally filtered by category.
func (db *DB) ListGeoCodes(ctx context.Context, category string) ([]models.GeoCode, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+geoCodeColumns+` FROM geo_codes g
		WHERE ? = '' OR g.category = ?
		ORDER BY g.code
	`, category, category)
	if err != nil {
		return nil, fmt.Errorf("store: list geo codes: %w", err)
	}
	return collectGeoCodes(rows)
}

// ListUnplaced returns the geo codes that have no position on the plan.
func (db *DB) ListUnplaced(ctx context.Context, planID int64) ([]models.GeoCode, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+geoCodeColumns+` FROM geo_codes g
		WHERE NOT EXISTS (SELECT 1 FROM positions p WHERE p.geo_code_id = g.id AND p.plan_id = ?)
		ORDER BY g.code
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("store: list unplaced: %w", err)
	}
	return collectGeoCodes(rows)
}

// DeleteGeoCode removes a geo code. Its positions cascade; its history stays.
func (db *DB) DeleteGeoCode(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM geo_codes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete geo code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(tx, id)
	return tx.Commit()
}

func scanGeoCode(row rowScanner) (*models.GeoCode, error) {
	var gc models.GeoCode
	if err := row.Scan(&gc.ID, &gc.Code, &gc.Label, &gc.Category, &gc.Metadata, &gc.CreatedAt); err != nil {
		return nil, err
	}
	return &gc, nil
}

func collectGeoCodes(rows *sql.Rows) ([]models.GeoCode, error) {
	defer rows.Close()
	out := []models.GeoCode{}
	for rows.Next() {
		gc, err := scanGeoCode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan geo code: %w", err)
		}
		out = append(out, *gc)
	}
	return out, rows.Err()
}
