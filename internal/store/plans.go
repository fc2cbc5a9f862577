package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/planparse"
)

const planColumns = `id, COALESCE(file, ''), name, kind, width, height, origin_x, origin_y, checksum, updated_at`

// UpsertPlanFile registers or refreshes the plan backed by file.
func (db *DB) UpsertPlanFile(ctx context.Context, file string, res *planparse.Result, checksum string) (*models.Plan, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO plans (file, name, kind, width, height, origin_x, origin_y, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			name       = excluded.name,
			kind       = excluded.kind,
			width      = excluded.width,
			height     = excluded.height,
			origin_x   = excluded.origin_x,
			origin_y   = excluded.origin_y,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
		RETURNING id
	`, file, res.Name, res.Kind, res.Width, res.Height, res.OriginX, res.OriginY, checksum, time.Now().UTC()).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("store: upsert plan %s: %w", file, err)
	}
	return db.GetPlan(ctx, id)
}

// CreatePlan registers a plan without a backing file (a freshly drawn vector plan).
func (db *DB) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: plan width and height must be positive", apperr.ErrValidation)
	}
	if p.Kind == "" {
		p.Kind = models.PlanDrawn
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO plans (name, kind, width, height, origin_x, origin_y, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Kind, p.Width, p.Height, p.OriginX, p.OriginY, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("store: create plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create plan: %w", err)
	}
	return db.GetPlan(ctx, id)
}

// GetPlan returns one plan by id.
func (db *DB) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	p, err := scanPlan(db.conn.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get plan: %w", err)
	}
	return p, nil
}

// GetPlanByFile returns the plan registered for file.
func (db *DB) GetPlanByFile(ctx context.Context, file string) (*models.Plan, error) {
	p, err := scanPlan(db.conn.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE file = ?`, file))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get plan by file: %w", err)
	}
	return p, nil
}

// ListPlans returns all plans ordered by name.
func (db *DB) ListPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list plans: %w", err)
	}
	defer rows.Close()
	out := []models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan plan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PlanChecksums maps every file-backed plan to its stored checksum.
func (db *DB) PlanChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT file, checksum FROM plans WHERE file IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: plan checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	err := row.Scan(&p.ID, &p.File, &p.Name, &p.Kind, &p.Width, &p.Height, &p.OriginX, &p.OriginY, &p.Checksum, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
