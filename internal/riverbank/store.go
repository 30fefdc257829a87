package riverbank

import (
	"context"

	"riverbank/internal/model"
)

// Store persists bottles and false-positive reports.
// Every mutation must be atomic with respect to concurrent callers.
type Store interface {
	// CreateBottle inserts a bottle and assigns its SequenceNumber.
	// The assigned number is written back into b.
	CreateBottle(ctx context.Context, b *model.Bottle) error

	// FindBottle returns the bottle with the given id, or nil if it does not exist.
	FindBottle(ctx context.Context, id string) (*model.Bottle, error)

	// SampleActiveBottles returns up to limit active bottles in random order,
	// never including excludeID.
	SampleActiveBottles(ctx context.Context, excludeID string, limit int) ([]*model.Bottle, error)

	// IncrementReportCount adds one to a bottle's report count and returns the new value.
	// Returns ErrNotFound for unknown bottles.
	IncrementReportCount(ctx context.Context, id string) (int64, error)

	// SetBottleStatus changes a bottle's status.
	// Returns ErrNotFound for unknown bottles.
	SetBottleStatus(ctx context.Context, id string, status model.BottleStatus) error

	// ApplyReaction adjusts the count for emoji by delta (+1 or -1), flooring at
	// zero and pruning zero entries, and returns the resulting reaction map.
	// Returns ErrNotFound for unknown bottles.
	ApplyReaction(ctx context.Context, id, emoji string, delta int) (map[string]int64, error)

	// CreateFalsePositiveReport stores a false-positive report.
	CreateFalsePositiveReport(ctx context.Context, r *model.FalsePositiveReport) error

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*model.Stats, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error
}
