// Package store persists the practice library and history in SQLite: the
// songs table, the measure_groups index (keyed by composite fragment
// identifier), and the practice_sessions log. It also answers the
// recommendation query (fewest practiced, then oldest group).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"etude/internal/logging"
)

// Store wraps the SQLite database. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path, creating parent
// directories and the schema as needed. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("opened database at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		composer TEXT,
		source_file TEXT,
		total_measures INTEGER DEFAULT 0
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_songs_source ON songs(source_file);
	`

	groupsTable := `
	CREATE TABLE IF NOT EXISTS measure_groups (
		id TEXT PRIMARY KEY,
		song_id INTEGER NOT NULL,
		start_measure INTEGER NOT NULL,
		end_measure INTEGER NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		group_size INTEGER GENERATED ALWAYS AS (end_measure - start_measure + 1) VIRTUAL,
		FOREIGN KEY (song_id) REFERENCES songs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_groups_song ON measure_groups(song_id);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS practice_sessions (
		id TEXT PRIMARY KEY,
		song_id INTEGER NOT NULL,
		measure_group_id TEXT NOT NULL,
		practiced_at TEXT DEFAULT (datetime('now')),
		rating TEXT CHECK (rating IN ('easy','medium','hard','snooze')) NOT NULL,
		duration_seconds INTEGER,
		notes TEXT,
		FOREIGN KEY (song_id) REFERENCES songs(id),
		FOREIGN KEY (measure_group_id) REFERENCES measure_groups(id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_group ON practice_sessions(measure_group_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_song ON practice_sessions(song_id);
	`

	for _, table := range []string{songsTable, groupsTable, sessionsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout is how this store writes timestamps. The fraction is fixed
// width so lexicographic text order matches time order even for sessions
// recorded within the same second. Rows written by SQLite's own
// datetime('now') default use sqliteLayout instead, so reads try both.
const (
	timeLayout   = "2006-01-02T15:04:05.000000000Z07:00"
	sqliteLayout = "2006-01-02 15:04:05"
)

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(sqliteLayout, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
