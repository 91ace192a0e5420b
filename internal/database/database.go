package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dnakit/internal/logging"
	"dnakit/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite action journal.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway and ":memory:" is
	// per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	l := logging.Component(logger, "journal")
	l.Info().Str("path", path).Msg("Journal database initialized")
	return &DB{db: db, logger: l}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS action_journal (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            kit_id TEXT NOT NULL DEFAULT '',
            action TEXT NOT NULL,
            resource TEXT NOT NULL,
            from_status TEXT NOT NULL DEFAULT '',
            to_status TEXT NOT NULL DEFAULT '',
            outcome TEXT NOT NULL,
            error TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_action_journal_user_booking ON action_journal(user_id, booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_action_journal_outcome ON action_journal(outcome)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Append stores an entry and fills in its id. A zero CreatedAt is set to now.
func (db *DB) Append(ctx context.Context, entry *models.JournalEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	query := `
        INSERT INTO action_journal (user_id, booking_id, kit_id, action, resource, from_status, to_status, outcome, error, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	result, err := db.db.ExecContext(ctx, query,
		entry.UserID,
		entry.BookingID,
		entry.KitID,
		string(entry.Action),
		entry.Resource,
		entry.FromStatus,
		entry.ToStatus,
		entry.Outcome,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// ListByBooking returns the user's entries for a booking, oldest first.
func (db *DB) ListByBooking(ctx context.Context, userID, bookingID string) ([]models.JournalEntry, error) {
	query := `
        SELECT id, user_id, booking_id, kit_id, action, resource, from_status, to_status, outcome, error, created_at
        FROM action_journal
        WHERE user_id = ? AND booking_id = ?
        ORDER BY id ASC
    `
	rows, err := db.db.QueryContext(ctx, query, userID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		var (
			e      models.JournalEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.BookingID, &e.KitID, &action, &e.Resource,
			&e.FromStatus, &e.ToStatus, &e.Outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = models.ActionKind(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByOutcome is used by the readiness report.
func (db *DB) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM action_journal GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (db *DB) PingContext(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}
