package vault

import (
	"context"
	"io"
	"time"
)

// Vault is an off-host destination for database snapshots.
type Vault interface {
	// PutSnapshot stores size bytes read from r under name.
	// Storing the same name twice replaces the earlier snapshot.
	PutSnapshot(ctx context.Context, name string, r io.Reader, size int64) error

	// ListSnapshots returns the stored snapshots ordered by name.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	// ValidateSetup checks that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// Snapshot describes a stored snapshot.
type Snapshot struct {
	Name string
	Size int64
}

// SnapshotName returns the canonical name for a snapshot taken at t.
// Names sort chronologically.
func SnapshotName(instanceID string, t time.Time) string {
	return "snapshots/" + instanceID + "-" + t.UTC().Format("20060102T150405Z") + ".db"
}
