package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"riverbank/internal/database/migrations"
	"riverbank/internal/model"
	"riverbank/internal/riverbank"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase implements riverbank.Store using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens a SQLite connection configured for concurrent writers:
// foreign keys on, a busy timeout so writers queue instead of failing, and
// write transactions that take the lock up front. File databases use WAL.
// An in-memory database is limited to a single connection, since each
// connection would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path != MemoryPath {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Bottle operations

func (s *SQLiteDatabase) CreateBottle(ctx context.Context, b *model.Bottle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, nextSequenceNumber).Scan(&seq); err != nil {
		return fmt.Errorf("assigning sequence number: %w", err)
	}

	status := b.Status
	if status == "" {
		status = model.StatusActive
	}
	_, err = tx.ExecContext(ctx, insertBottle,
		b.ID, seq, b.Message, nullString(b.Nickname), nullString(b.Country),
		b.OriginAddress, string(status), b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting bottle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	b.SequenceNumber = seq
	b.Status = status
	if b.ReactionCounts == nil {
		b.ReactionCounts = map[string]int64{}
	}
	return nil
}

func (s *SQLiteDatabase) FindBottle(ctx context.Context, id string) (*model.Bottle, error) {
	b, err := scanBottle(s.db.QueryRowContext(ctx, getBottle, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting bottle: %w", err)
	}
	return b, nil
}

func (s *SQLiteDatabase) SampleActiveBottles(ctx context.Context, excludeID string, limit int) ([]*model.Bottle, error) {
	if limit <= 0 {
		return []*model.Bottle{}, nil
	}

	rows, err := s.db.QueryContext(ctx, sampleActiveBottles, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling bottles: %w", err)
	}
	defer rows.Close()

	bottles := make([]*model.Bottle, 0, limit)
	for rows.Next() {
		b, err := scanBottle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bottle: %w", err)
		}
		bottles = append(bottles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sampling bottles: %w", err)
	}
	return bottles, nil
}

func (s *SQLiteDatabase) IncrementReportCount(ctx context.Context, id string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, incrementReportCount, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, riverbank.ErrNotFound
		}
		return 0, fmt.Errorf("incrementing report count: %w", err)
	}
	return count, nil
}

func (s *SQLiteDatabase) SetBottleStatus(ctx context.Context, id string, status model.BottleStatus) error {
	res, err := s.db.ExecContext(ctx, setBottleStatus, string(status), id)
	if err != nil {
		return fmt.Errorf("setting bottle status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting bottle status: %w", err)
	}
	if n == 0 {
		return riverbank.ErrNotFound
	}
	return nil
}

// ApplyReaction adjusts one emoji count inside a single transaction and
// returns the bottle's full reaction map afterwards.
func (s *SQLiteDatabase) ApplyReaction(ctx context.Context, id, emoji string, delta int) (map[string]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, bottleExists, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, riverbank.ErrNotFound
		}
		return nil, fmt.Errorf("checking bottle: %w", err)
	}

	switch {
	case delta > 0:
		if _, err := tx.ExecContext(ctx, addReaction, id, emoji); err != nil {
			return nil, fmt.Errorf("adding reaction: %w", err)
		}
	case delta < 0:
		res, err := tx.ExecContext(ctx, removeReaction, id, emoji)
		if err != nil {
			return nil, fmt.Errorf("removing reaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("removing reaction: %w", err)
		}
		// The last reaction (or a missing one) is pruned rather than decremented.
		if n == 0 {
			if _, err := tx.ExecContext(ctx, pruneReaction, id, emoji); err != nil {
				return nil, fmt.Errorf("pruning reaction: %w", err)
			}
		}
	}

	counts, err := listReactionCounts(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return counts, nil
}

// False-positive operations

func (s *SQLiteDatabase) CreateFalsePositiveReport(ctx context.Context, r *model.FalsePositiveReport) error {
	_, err := s.db.ExecContext(ctx, insertFalsePositiveReport,
		r.ID, r.Message, nullString(r.Nickname), nullString(r.Country), r.OriginAddress, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting false positive report: %w", err)
	}
	return nil
}

// Maintenance

func (s *SQLiteDatabase) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx, bottleStats).Scan(
		&st.ActiveBottles, &st.ReportedBottles, &st.FalsePositiveReports, &st.LastSequenceNumber)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return &st, nil
}

func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the file path of the database, or "" when wrapping a connection.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies that the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// SchemaVersion returns the applied migration version and whether the
// last migration left the schema dirty.
func (s *SQLiteDatabase) SchemaVersion() (uint, bool, error) {
	return migrations.Version(s.db)
}

// BackupTo writes a consistent copy of the database to destPath.
// destPath must not exist.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanBottle(row rowScanner) (*model.Bottle, error) {
	var (
		b                 model.Bottle
		nickname, country sql.NullString
		status            string
		reactions         string
		createdAt         time.Time
	)
	err := row.Scan(&b.ID, &b.SequenceNumber, &b.Message, &nickname, &country,
		&b.OriginAddress, &status, &b.ReportCount, &createdAt, &reactions)
	if err != nil {
		return nil, err
	}

	b.Nickname = nickname.String
	b.Country = country.String
	b.Status = model.BottleStatus(status)
	b.CreatedAt = createdAt.UTC()
	b.ReactionCounts = map[string]int64{}
	if err := json.Unmarshal([]byte(reactions), &b.ReactionCounts); err != nil {
		return nil, fmt.Errorf("decoding reactions: %w", err)
	}
	return &b, nil
}

func listReactionCounts(ctx context.Context, q queryer, id string) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, listReactions, id)
	if err != nil {
		return nil, fmt.Errorf("listing reactions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var emoji string
		var n int64
		if err := rows.Scan(&emoji, &n); err != nil {
			return nil, fmt.Errorf("scanning reaction: %w", err)
		}
		counts[emoji] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing reactions: %w", err)
	}
	return counts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time check that SQLiteDatabase implements riverbank.Store.
var _ riverbank.Store = (*SQLiteDatabase)(nil)
