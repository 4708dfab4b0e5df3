// Package sqlite stores the audit journal and the state snapshots in a
// single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"focusforest/internal/event"
	"focusforest/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{dbPath: dbPath}
}

var _ storage.Storage = (*SQLiteStore)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	type TEXT NOT NULL,
	app_name TEXT,
	window_title TEXT,
	value REAL,
	tag TEXT,
	notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events (timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events (type);

CREATE TABLE IF NOT EXISTS snapshots (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const insertEventSQL = `INSERT INTO events (timestamp, type, app_name, window_title, value, tag, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectEventsSQL = `SELECT id, timestamp, type, app_name, window_title, value, tag, notes
FROM events
WHERE timestamp >= ? AND timestamp <= ?`

const pruneEventsSQL = `DELETE FROM events WHERE timestamp < ?`

const loadSnapshotSQL = `SELECT data FROM snapshots WHERE key = ?`

const upsertSnapshotSQL = `INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

// dsn enables WAL so the CLI can read the journal while the daemon writes.
func (s *SQLiteStore) dsn() string {
	return s.dbPath + "?_journal=WAL&_timeout=5000&_fk=true"
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	dir := filepath.Dir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create db directory %s: %w", dir, err)
	}

	log.Printf("Opening focus journal at: %s", s.dbPath)
	db, err := sql.Open("sqlite3", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection: every write is serialized anyway and the snapshots
	// must never interleave.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) SaveEvent(ctx context.Context, e event.Event) (int64, error) {
	if s.db == nil {
		return 0, errNotOpen
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	res, err := s.db.ExecContext(ctx, insertEventSQL, e.Timestamp, e.Type, e.AppName, e.WindowTitle, e.Value, e.Tag, e.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s event: %w", e.Type, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetEvents returns events in [start, end] oldest first, optionally limited
// to the given types.
func (s *SQLiteStore) GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	query := selectEventsSQL
	args := []interface{}{start, end}
	if len(eventTypes) > 0 {
		query += " AND type IN (" + strings.TrimSuffix(strings.Repeat("?,", len(eventTypes)), ",") + ")"
		for _, et := range eventTypes {
			args = append(args, et)
		}
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		e                          event.Event
		appName, title, tag, notes sql.NullString
		value                      sql.NullFloat64
	)
	if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &appName, &title, &value, &tag, &notes); err != nil {
		return event.Event{}, fmt.Errorf("failed to scan event row: %w", err)
	}
	e.AppName = appName.String
	e.WindowTitle = title.String
	e.Value = value.Float64
	e.Tag = tag.String
	e.Notes = notes.String
	return e, nil
}

// PruneEvents deletes journal entries older than before and reports how
// many were removed.
func (s *SQLiteStore) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNotOpen
	}
	res, err := s.db.ExecContext(ctx, pruneEventsSQL, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, errNotOpen
	}
	var data string
	err := s.db.QueryRowContext(ctx, loadSnapshotSQL, key).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to load snapshot %q: %w", key, err)
	}
	return []byte(data), true, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	if s.db == nil {
		return errNotOpen
	}
	if _, err := s.db.ExecContext(ctx, upsertSnapshotSQL, key, string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to save snapshot %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	log.Println("Closing database connection.")
	err := s.db.Close()
	s.db = nil
	return err
}

var errNotOpen = errors.New("sqlite store is not open")
