package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteQueries = queries{
	upsert: `INSERT INTO builds (id, mode, status, started_at, duration_ms, assets, error_count, warning_count, first_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			status = excluded.status,
			started_at = excluded.started_at,
			duration_ms = excluded.duration_ms,
			assets = excluded.assets,
			error_count = excluded.error_count,
			warning_count = excluded.warning_count,
			first_error = excluded.first_error`,
	list:    `SELECT ` + selectColumns + ` FROM builds ORDER BY started_at DESC LIMIT ?`,
	get:     `SELECT ` + selectColumns + ` FROM builds WHERE id = ?`,
	cleanup: `DELETE FROM builds WHERE started_at < ?`,
}

// NewSQLiteStore opens (creating if needed) a SQLite build store at path
func NewSQLiteStore(ctx context.Context, path string) (BuildStore, error) {
	if path == "" {
		path = "pagepack.db"
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createSQLiteTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &sqlStore{db: db, q: sqliteQueries}, nil
}

func createSQLiteTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			assets TEXT NOT NULL DEFAULT '[]',
			error_count INTEGER NOT NULL DEFAULT 0,
			warning_count INTEGER NOT NULL DEFAULT 0,
			first_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", stmt, err)
		}
	}
	return nil
}
