package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store manages the SQLite database holding synced messages,
// classifications and feedback.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the database location in the user cache
// directory, creating the parent directory if needed.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	dir := filepath.Join(cacheDir, "smartinbox")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}
	return filepath.Join(dir, "smartinbox.db"), nil
}

// Open opens or creates the database at path and initializes the
// schema if the database is new.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	// WAL mode lets the server and CLI read concurrently.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Stats summarizes the store contents.
type Stats struct {
	Messages        int64
	Classifications int64
	Feedback        int64
}

// GetStats returns row counts per table.
func (s *Store) GetStats() (*Stats, error) {
	var stats Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&stats.Messages); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM classifications").Scan(&stats.Classifications); err != nil {
		return nil, fmt.Errorf("count classifications: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM feedback").Scan(&stats.Feedback); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	return &stats, nil
}
