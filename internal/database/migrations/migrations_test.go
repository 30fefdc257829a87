package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	for _, table := range []string{"bottles", "bottle_reactions", "bottle_sequence", "false_positive_reports", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestMigrateUp_SeedsSequence(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	var value int64
	if err := db.QueryRow("SELECT value FROM bottle_sequence WHERE id = 1").Scan(&value); err != nil {
		t.Fatalf("reading sequence: %v", err)
	}
	if value != 0 {
		t.Errorf("sequence value = %d, want 0", value)
	}

	if _, err := db.Exec("INSERT INTO bottle_sequence (id, value) VALUES (2, 0)"); err == nil {
		t.Error("expected a second sequence row to be rejected")
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)
		err := CheckDBMigrationStatus(db)
		if !errors.Is(err, ErrNeedsMigration) {
			t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNeedsMigration", err)
		}
	})

	t.Run("migrated database is current", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() error = %v", err)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() error = %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() error = %v", err)
	}

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	version, dirty, err := Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if dirty || version != latest {
		t.Errorf("Version() = %d (dirty %v), want %d", version, dirty, latest)
	}
}

func TestSchema_ReactionsCascade(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec(`INSERT INTO bottle_reactions (bottle_id, emoji, count) VALUES ('missing', '🌊', 1)`)
	if err == nil {
		t.Error("expected foreign key violation for reaction on unknown bottle")
	}

	_, err = db.Exec(`INSERT INTO bottles (id, sequence_number, message, origin_address, created_at)
		VALUES ('b-1', 1, 'a message long enough', 'unknown', datetime('now'))`)
	if err != nil {
		t.Fatalf("inserting bottle: %v", err)
	}
	_, err = db.Exec(`INSERT INTO bottle_reactions (bottle_id, emoji, count) VALUES ('b-1', '🌊', 0)`)
	if err == nil {
		t.Error("expected zero-count reaction row to be rejected")
	}
}

func TestSchema_StatusConstraint(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec(`INSERT INTO bottles (id, sequence_number, message, origin_address, status, created_at)
		VALUES ('b-1', 1, 'a message long enough', 'unknown', 'hidden', datetime('now'))`)
	if err == nil {
		t.Error("expected unknown status to be rejected")
	}
}

// openTestDB opens an in-memory SQLite database with foreign keys enabled.
// A single connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
