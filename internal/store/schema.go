// Package store provides the SQLite-backed plan, geo-code and position store
// with an append-only position history.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS plans (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	file       TEXT UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT 'raster',
	width      REAL NOT NULL,
	height     REAL NOT NULL,
	origin_x   REAL NOT NULL DEFAULT 0,
	origin_y   REAL NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS geo_codes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	code       TEXT NOT NULL UNIQUE,
	label      TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS positions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	geo_code_id INTEGER NOT NULL REFERENCES geo_codes(id) ON DELETE CASCADE,
	plan_id     INTEGER NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	pos_x       REAL NOT NULL,
	pos_y       REAL NOT NULL,
	width       INTEGER,
	height      INTEGER,
	anchor_x    REAL,
	anchor_y    REAL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_positions_plan ON positions(plan_id);

CREATE TABLE IF NOT EXISTS positions_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	geo_code_id INTEGER NOT NULL,
	plan_id     INTEGER NOT NULL,
	pos_x       REAL NOT NULL,
	pos_y       REAL NOT NULL,
	action      TEXT NOT NULL CHECK (action IN ('placed', 'moved', 'removed')),
	timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_plan ON positions_history(plan_id, timestamp);
`

// The unique index is the only guard against duplicate placements; there is
// no application-level locking.
const (
	uniqueIndexSQL     = `CREATE UNIQUE INDEX IF NOT EXISTS uq_positions_code_plan ON positions(geo_code_id, plan_id)`
	dropUniqueIndexSQL = `DROP INDEX IF EXISTS uq_positions_code_plan`
	multiIndexSQL      = `CREATE INDEX IF NOT EXISTS idx_positions_code_plan ON positions(geo_code_id, plan_id)`
)

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn   *sql.DB
	multi  bool
	logger *slog.Logger
}

// Option configures Open.
type Option func(*DB)

// WithMultiInstance lets a geo code hold several positions on the same plan.
// The (geo_code_id, plan_id) uniqueness constraint is dropped.
func WithMultiInstance(enabled bool) Option {
	return func(db *DB) { db.multi = enabled }
}

// WithLogger sets the logger used for swallowed history failures.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	db := &DB{logger: slog.Default()}
	for _, opt := range opts {
		opt(db)
	}

	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}

	idx := []string{uniqueIndexSQL}
	if db.multi {
		idx = []string{dropUniqueIndexSQL, multiIndexSQL}
	}
	for _, stmt := range idx {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: apply position index: %w", err)
		}
	}

	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	db.conn = conn
	return db, nil
}

// MultiInstance reports whether several positions per (geo code, plan) are allowed.
func (db *DB) MultiInstance() bool { return db.multi }

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
