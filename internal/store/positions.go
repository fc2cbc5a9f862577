package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

const positionColumns = `p.id, p.geo_code_id, p.plan_id, p.pos_x, p.pos_y, p.width, p.height,
	p.anchor_x, p.anchor_y, p.created_at, p.updated_at`

// ValidateSave rejects malformed upsert payloads before any write.
func ValidateSave(req models.SaveRequest) error {
	percent := []validation.Rule{validation.By(finite), validation.Min(0.0), validation.Max(100.0)}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.GeoCodeID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.PlanID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.PosX, percent...),
		validation.Field(&req.PosY, percent...),
		validation.Field(&req.Width, validation.Min(1)),
		validation.Field(&req.Height, validation.Min(1)),
		validation.Field(&req.AnchorX, percent...),
		validation.Field(&req.AnchorY, percent...),
		validation.Field(&req.PositionID, validation.Min(int64(1))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if (req.AnchorX == nil) != (req.AnchorY == nil) {
		return fmt.Errorf("%w: anchor_x and anchor_y must be set together", apperr.ErrValidation)
	}
	return nil
}

func finite(v any) error {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case *float64:
		if x == nil {
			return nil
		}
		f = *x
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a finite number")
	}
	return nil
}

// UpsertPosition inserts or updates one position and appends its history row
// in a single transaction.
//
// Without a position id the row is inserted; when the (geo code, plan)
// uniqueness constraint fires the existing row is updated instead. With a
// position id the row is updated by id, scoped by geo code and plan, and
// apperr.ErrNotFound is returned when nothing matched.
func (db *DB) UpsertPosition(ctx context.Context, req models.SaveRequest) (*models.Position, error) {
	if err := ValidateSave(req); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	var (
		id     int64
		action string
	)

	if req.PositionID == nil {
		id, err = insertPosition(ctx, tx, req, now)
		action = models.ActionPlaced
		if isUniqueViolation(err) && !db.multi {
			id, err = updatePositionByKey(ctx, tx, req, now)
			action = models.ActionMoved
		}
	} else {
		id = *req.PositionID
		err = updatePositionByID(ctx, tx, req, now)
		action = models.ActionMoved
	}
	if err != nil {
		return nil, mapWriteErr(err)
	}

	db.appendHistory(ctx, tx, models.HistoryEntry{
		GeoCodeID: req.GeoCodeID,
		PlanID:    req.PlanID,
		PosX:      req.PosX,
		PosY:      req.PosY,
		Action:    action,
		Timestamp: now,
	})

	pos, err := scanPosition(tx.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions p WHERE p.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("store: reload position: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return pos, nil
}

func insertPosition(ctx context.Context, tx *sql.Tx, req models.SaveRequest, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO positions (geo_code_id, plan_id, pos_x, pos_y, width, height, anchor_x, anchor_y, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.GeoCodeID, req.PlanID, req.PosX, req.PosY,
		nullInt(req.Width), nullInt(req.Height), nullFloat(req.AnchorX), nullFloat(req.AnchorY), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func updatePositionByKey(ctx context.Context, tx *sql.Tx, req models.SaveRequest, now time.Time) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		UPDATE positions SET
			pos_x = ?, pos_y = ?, width = ?, height = ?, anchor_x = ?, anchor_y = ?, updated_at = ?
		WHERE geo_code_id = ? AND plan_id = ?
		RETURNING id
	`, req.PosX, req.PosY, nullInt(req.Width), nullInt(req.Height),
		nullFloat(req.AnchorX), nullFloat(req.AnchorY), now, req.GeoCodeID, req.PlanID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	return id, err
}

func updatePositionByID(ctx context.Context, tx *sql.Tx, req models.SaveRequest, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE positions SET
			pos_x = ?, pos_y = ?, width = ?, height = ?, anchor_x = ?, anchor_y = ?, updated_at = ?
		WHERE id = ? AND geo_code_id = ? AND plan_id = ?
	`, req.PosX, req.PosY, nullInt(req.Width), nullInt(req.Height),
		nullFloat(req.AnchorX), nullFloat(req.AnchorY), now, *req.PositionID, req.GeoCodeID, req.PlanID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RemovePosition deletes a position and records a "removed" history row with
// its last coordinates. It reports false when the row was already gone.
func (db *DB) RemovePosition(ctx context.Context, positionID int64) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pos, err := scanPosition(tx.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions p WHERE p.id = ?`, positionID))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load position: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, positionID); err != nil {
		return false, fmt.Errorf("store: delete position: %w", err)
	}
	db.appendHistory(ctx, tx, removedEntry(pos))

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return true, nil
}

// RemoveAllPositionsForCode un-places every instance of a geo code from a plan.
func (db *DB) RemoveAllPositionsForCode(ctx context.Context, geoCodeID, planID int64) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions p WHERE p.geo_code_id = ? AND p.plan_id = ?`, geoCodeID, planID)
	if err != nil {
		return false, fmt.Errorf("store: list code positions: %w", err)
	}
	existing, err := collectPositions(rows, false)
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM positions WHERE geo_code_id = ? AND plan_id = ?`, geoCodeID, planID); err != nil {
		return false, fmt.Errorf("store: delete code positions: %w", err)
	}
	for i := range existing {
		db.appendHistory(ctx, tx, removedEntry(&existing[i]))
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return true, nil
}

// GetPosition returns one position by id.
func (db *DB) GetPosition(ctx context.Context, positionID int64) (*models.Position, error) {
	pos, err := scanPosition(db.conn.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions p WHERE p.id = ?`, positionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get position: %w", err)
	}
	return pos, nil
}

// ListPositionsForPlan returns every position on a plan ordered by id. With
// details the geo code's code, label and category are joined in.
func (db *DB) ListPositionsForPlan(ctx context.Context, planID int64, details bool) ([]models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions p WHERE p.plan_id = ? ORDER BY p.id`
	if details {
		query = `SELECT ` + positionColumns + `, g.code, g.label, g.category
			FROM positions p JOIN geo_codes g ON g.id = p.geo_code_id
			WHERE p.plan_id = ? ORDER BY p.id`
	}
	rows, err := db.conn.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("store: list positions: %w", err)
	}
	return collectPositions(rows, details)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner, extra ...any) (*models.Position, error) {
	var (
		p                models.Position
		width, height    sql.NullInt64
		anchorX, anchorY sql.NullFloat64
	)
	dest := []any{&p.ID, &p.GeoCodeID, &p.PlanID, &p.PosX, &p.PosY, &width, &height,
		&anchorX, &anchorY, &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if width.Valid {
		w := int(width.Int64)
		p.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		p.Height = &h
	}
	if anchorX.Valid && anchorY.Valid {
		ax, ay := anchorX.Float64, anchorY.Float64
		p.AnchorX, p.AnchorY = &ax, &ay
	}
	return &p, nil
}

func collectPositions(rows *sql.Rows, details bool) ([]models.Position, error) {
	defer rows.Close()
	out := []models.Position{}
	for rows.Next() {
		var code, label, category string
		var extra []any
		if details {
			extra = []any{&code, &label, &category}
		}
		p, err := scanPosition(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("store: scan position: %w", err)
		}
		p.Code, p.Label, p.Category = code, label, category
		out = append(out, *p)
	}
	return out, rows.Err()
}

func removedEntry(p *models.Position) models.HistoryEntry {
	return models.HistoryEntry{
		GeoCodeID: p.GeoCodeID,
		PlanID:    p.PlanID,
		PosX:      p.PosX,
		PosY:      p.PosY,
		Action:    models.ActionRemoved,
		Timestamp: time.Now().UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func mapWriteErr(err error) error {
	var se sqlite3.Error
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return err
	case errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: unknown geo code or plan", apperr.ErrValidation)
	}
	return fmt.Errorf("store: write position: %w", err)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
