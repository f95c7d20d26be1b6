package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/hannes/pagepack/config"
)

var postgresQueries = queries{
	upsert: `INSERT INTO builds (id, mode, status, started_at, duration_ms, assets, error_count, warning_count, first_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			duration_ms = EXCLUDED.duration_ms,
			assets = EXCLUDED.assets,
			error_count = EXCLUDED.error_count,
			warning_count = EXCLUDED.warning_count,
			first_error = EXCLUDED.first_error`,
	list:    `SELECT ` + selectColumns + ` FROM builds ORDER BY started_at DESC LIMIT $1`,
	get:     `SELECT ` + selectColumns + ` FROM builds WHERE id = $1`,
	cleanup: `DELETE FROM builds WHERE started_at < $1`,
}

// postgresConnString builds a lib/pq key=value connection string.
// Values are single-quoted so empty values and spaces survive parsing.
func postgresConnString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteConnValue(cfg.Host), cfg.Port, quoteConnValue(cfg.Username), quoteConnValue(cfg.Password),
		quoteConnValue(cfg.Name), quoteConnValue(cfg.SSLMode))
}

func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// NewPostgresStore connects to PostgreSQL and creates the builds table if needed
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (BuildStore, error) {
	db, err := sql.Open("postgres", postgresConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createPostgresTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &sqlStore{db: db, q: postgresQueries}, nil
}

func createPostgresTables(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS builds (
		id VARCHAR(36) PRIMARY KEY,
		mode VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		started_at BIGINT NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		assets TEXT NOT NULL DEFAULT '[]',
		error_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		first_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
	`

	_, err := db.ExecContext(ctx, query)
	return err
}
