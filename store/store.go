// Package store keeps a history of builds.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hannes/pagepack/bundler"
	"github.com/hannes/pagepack/config"
)

// Build statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ErrNotFound is returned when a build id is unknown
var ErrNotFound = errors.New("build not found")

// Record is one stored build
type Record struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration"`
	Assets       []bundler.Asset `json:"assets"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	FirstError   string          `json:"first_error,omitempty"`
}

// defaultListLimit caps ListBuilds when no positive limit is given
const defaultListLimit = 50

// BuildStore defines the interface for build history storage
type BuildStore interface {
	// SaveBuild stores a build record, replacing any record with the same id
	SaveBuild(ctx context.Context, rec Record) error

	// ListBuilds returns the most recent builds first, at most 50 when limit <= 0
	ListBuilds(ctx context.Context, limit int) ([]Record, error)

	// GetBuild returns one build or ErrNotFound
	GetBuild(ctx context.Context, id string) (Record, error)

	// CleanupOldBuilds removes builds started before now minus olderThan
	CleanupOldBuilds(ctx context.Context, olderThan time.Duration) (int64, error)

	// Close closes the underlying storage
	Close() error
}

// NewRecord converts a build result into a record
func NewRecord(result *bundler.Result) Record {
	rec := Record{
		ID:           result.ID,
		Mode:         string(result.Mode),
		Status:       StatusSuccess,
		StartedAt:    result.Started.UTC(),
		Duration:     result.Duration,
		Assets:       result.Assets,
		ErrorCount:   len(result.Errors),
		WarningCount: len(result.Warnings),
	}
	if !result.Succeeded() {
		rec.Status = StatusFailed
		rec.FirstError = result.Errors[0].String()
	}
	return rec
}

// Open opens the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.DatabaseConfig) (BuildStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
