package repository

import (
	"context"
	"errors"

	"meshscope/internal/domain"
)

// ErrNoSnapshot is returned when no discovery run has been stored yet
var ErrNoSnapshot = errors.New("no snapshot stored")

// Repository stores the latest topology snapshot
type Repository interface {
	// SaveSnapshot replaces the stored snapshot
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error

	// LatestSnapshot returns the stored snapshot or ErrNoSnapshot
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)

	// ClearSnapshot removes the stored snapshot
	ClearSnapshot(ctx context.Context) error

	// Close releases resources
	Close() error
}
