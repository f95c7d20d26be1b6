package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// queries holds the dialect-specific statements
type queries struct {
	upsert  string
	list    string
	get     string
	cleanup string
}

// sqlStore implements BuildStore on database/sql
type sqlStore struct {
	db *sql.DB
	q  queries
}

const selectColumns = `id, mode, status, started_at, duration_ms, assets, error_count, warning_count, first_error`

// SaveBuild stores a build record
func (s *sqlStore) SaveBuild(ctx context.Context, rec Record) error {
	assets, err := json.Marshal(rec.Assets)
	if err != nil {
		return fmt.Errorf("failed to encode assets: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.q.upsert,
		rec.ID,
		rec.Mode,
		rec.Status,
		rec.StartedAt.UnixMilli(),
		rec.Duration.Milliseconds(),
		string(assets),
		rec.ErrorCount,
		rec.WarningCount,
		rec.FirstError,
	)
	if err != nil {
		return fmt.Errorf("failed to save build %s: %w", rec.ID, err)
	}
	return nil
}

// ListBuilds returns the most recent builds first
func (s *sqlStore) ListBuilds(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, s.q.list, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("[Store] Failed to close rows: %v", err)
		}
	}()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate builds: %w", err)
	}
	return records, nil
}

// GetBuild returns one build
func (s *sqlStore) GetBuild(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.q.get, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// CleanupOldBuilds removes builds older than the given duration
func (s *sqlStore) CleanupOldBuilds(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	result, err := s.db.ExecContext(ctx, s.q.cleanup, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup builds: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec        Record
		startedAt  int64
		durationMS int64
		assets     string
		firstError sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Mode, &rec.Status, &startedAt, &durationMS, &assets, &rec.ErrorCount, &rec.WarningCount, &firstError)
	if err != nil {
		return Record{}, err
	}

	rec.StartedAt = time.UnixMilli(startedAt).UTC()
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.FirstError = firstError.String
	if assets != "" {
		if err := json.Unmarshal([]byte(assets), &rec.Assets); err != nil {
			return Record{}, fmt.Errorf("failed to decode assets for build %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
