package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is a single-file Store for local use and tests. It holds one
// connection, so every unit of work is serialized.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		email         TEXT,
		age           INTEGER,
		gender        TEXT,
		fitness_level TEXT,
		goals         TEXT,
		created_at    DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
	`CREATE TABLE IF NOT EXISTS exercise_types (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		name             TEXT NOT NULL UNIQUE,
		primary_muscle   TEXT,
		equipment_needed BOOLEAN NOT NULL DEFAULT 0,
		default_sets     INTEGER NOT NULL DEFAULT 3 CHECK (default_sets BETWEEN 1 AND 10),
		default_reps     INTEGER NOT NULL DEFAULT 10 CHECK (default_reps BETWEEN 1 AND 100),
		notes            TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users (id),
		title       TEXT NOT NULL,
		description TEXT,
		total_days  INTEGER NOT NULL CHECK (total_days BETWEEN 1 AND 30),
		is_active   BOOLEAN NOT NULL DEFAULT 1,
		created_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS plans_user_idx ON plans (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS plan_days (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id    INTEGER NOT NULL REFERENCES plans (id),
		day_number INTEGER NOT NULL CHECK (day_number BETWEEN 1 AND 30),
		title      TEXT,
		rest_day   BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (plan_id, day_number)
	)`,
	`CREATE TABLE IF NOT EXISTS exercise_instances (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_day_id      INTEGER NOT NULL REFERENCES plan_days (id),
		exercise_type_id INTEGER NOT NULL REFERENCES exercise_types (id),
		order_index      INTEGER NOT NULL DEFAULT 0,
		target_sets      INTEGER NOT NULL CHECK (target_sets >= 1),
		target_reps      INTEGER NOT NULL CHECK (target_reps >= 1),
		current_sets     INTEGER NOT NULL CHECK (current_sets >= 1),
		current_reps     INTEGER NOT NULL CHECK (current_reps >= 1),
		rest_seconds     INTEGER NOT NULL DEFAULT 60,
		notes            TEXT,
		last_rpe         REAL,
		last_reported_at DATETIME,
		last_adjusted_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS exercise_instances_day_idx ON exercise_instances (plan_day_id, order_index)`,
	`CREATE TABLE IF NOT EXISTS session_reports (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id              INTEGER NOT NULL REFERENCES users (id),
		plan_id              INTEGER NOT NULL REFERENCES plans (id),
		exercise_instance_id INTEGER NOT NULL REFERENCES exercise_instances (id),
		date                 DATETIME NOT NULL,
		rpe                  REAL NOT NULL CHECK (rpe BETWEEN 1 AND 10),
		reps_completed       INTEGER NOT NULL CHECK (reps_completed BETWEEN 0 AND 200),
		sets_completed       INTEGER NOT NULL CHECK (sets_completed BETWEEN 0 AND 15),
		success              BOOLEAN NOT NULL DEFAULT 1,
		duration_seconds     INTEGER CHECK (duration_seconds BETWEEN 0 AND 7200)
	)`,
	`CREATE INDEX IF NOT EXISTS session_reports_history_idx
		ON session_reports (user_id, exercise_instance_id, date)`,
	`CREATE INDEX IF NOT EXISTS session_reports_user_date_idx ON session_reports (user_id, date)`,
}

// OpenSQLite opens (or creates) the SQLite database at path and ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() {
	_ = s.db.Close()
}

// View runs fn in a transaction that is always rolled back.
func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	stx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = stx.Rollback() }()

	return fn(&tx{c: sqlConn{tx: stx}})
}

// Update runs fn in a transaction committed when fn returns nil.
func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) (err error) {
	stx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = stx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = stx.Rollback()
		}
	}()

	if err = fn(&tx{c: sqlConn{tx: stx}}); err != nil {
		return err
	}
	if err = stx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// sqlConn adapts a *sql.Tx to conn.
type sqlConn struct {
	tx *sql.Tx
}

func (c sqlConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqlConn) queryRow(ctx context.Context, query string, args ...any) scanner {
	return sqlRow{c.tx.QueryRowContext(ctx, query, args...)}
}

func (c sqlConn) query(ctx context.Context, query string, args ...any) (rows, error) {
	rs, err := c.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rs}, nil
}

func (c sqlConn) lockClause() string { return "" }

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }
