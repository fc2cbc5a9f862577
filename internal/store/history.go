package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/starford/geoplan/internal/models"
)

// appendHistory writes one audit row inside a savepoint. A failure rolls back
// only the savepoint and is logged; the primary mutation still commits.
func (db *DB) appendHistory(ctx context.Context, tx *sql.Tx, e models.HistoryEntry) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT history_append`); err != nil {
		db.logger.Warn("history: savepoint failed", slog.String("error", err.Error()))
		return
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO positions_history (geo_code_id, plan_id, pos_x, pos_y, action, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.GeoCodeID, e.PlanID, e.PosX, e.PosY, e.Action, e.Timestamp)
	if err != nil {
		db.logger.Warn("history: append failed",
			slog.Int64("geo_code_id", e.GeoCodeID),
			slog.Int64("plan_id", e.PlanID),
			slog.String("action", e.Action),
			slog.String("error", err.Error()))
		_, _ = tx.ExecContext(ctx, `ROLLBACK TO history_append`)
	}
	_, _ = tx.ExecContext(ctx, `RELEASE history_append`)
}

// PositionHistory returns the newest audit rows for a plan, newest first.
// A zero geoCodeID returns rows for every code.
func (db *DB) PositionHistory(ctx context.Context, planID, geoCodeID int64, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, geo_code_id, plan_id, pos_x, pos_y, action, timestamp
		FROM positions_history
		WHERE plan_id = ? AND (? = 0 OR geo_code_id = ?)
		ORDER BY id DESC
		LIMIT ?
	`, planID, geoCodeID, geoCodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: position history: %w", err)
	}
	defer rows.Close()

	out := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.GeoCodeID, &e.PlanID, &e.PosX, &e.PosY, &e.Action, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
