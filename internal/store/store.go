package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// ErrNotFound is returned when a requested reading does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for motion readings.
type Store interface {
	RecordReading(ctx context.Context, r *model.Reading) error
	GetReading(ctx context.Context, id string) (*model.Reading, error)
	// LatestReading returns the most recently received reading, or
	// ErrNotFound when the store is empty.
	LatestReading(ctx context.Context) (*model.Reading, error)
	// ListReadings returns readings newest first, plus the number of readings
	// matching the filter before Limit is applied. Limit <= 0 means no limit.
	ListReadings(ctx context.Context, filter model.ReadingFilter) ([]*model.Reading, int, error)
	Stats(ctx context.Context) (model.Stats, error)

	Close() error
}
