package testutil

import (
	"context"
	"testing"
	"time"

	"riverbank/internal/database"
	"riverbank/internal/model"
)

// NewTestDatabase creates a new migrated in-memory SQLite database.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(database.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SeedBottles inserts n active bottles with ids "seed-1".."seed-n".
func SeedBottles(t *testing.T, db *database.SQLiteDatabase, n int) []*model.Bottle {
	t.Helper()

	ids := NewPrefixedIDGenerator("seed")
	bottles := make([]*model.Bottle, 0, n)
	for range n {
		b := &model.Bottle{
			ID:            ids.New(),
			Message:       "a seeded bottle drifting downstream",
			OriginAddress: "192.0.2.1",
			Status:        model.StatusActive,
			CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := db.CreateBottle(context.Background(), b); err != nil {
			t.Fatalf("seeding bottle: %v", err)
		}
		bottles = append(bottles, b)
	}
	return bottles
}
