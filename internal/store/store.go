// Package store provides SQLite persistence for bookmarks and fetch history.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// FetchRecord is one collection load attempt.
type FetchRecord struct {
	Collection string    `json:"collection"`
	Endpoint   string    `json:"endpoint"`
	CardCount  int       `json:"cardCount"`
	Partial    bool      `json:"partial,omitempty"`
	Err        string    `json:"error,omitempty"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bookmarks (
		collection TEXT NOT NULL,
		card_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (collection, card_id)
	);

	CREATE TABLE IF NOT EXISTS fetch_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		card_count INTEGER NOT NULL DEFAULT 0,
		partial INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		fetched_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fetch_history_collection ON fetch_history(collection, fetched_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Bookmarks returns the bookmarked card ids of a collection, oldest first.
func (s *Store) Bookmarks(collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT card_id FROM bookmarks
		WHERE collection = ?
		ORDER BY rowid ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddBookmark bookmarks a card. Adding an existing bookmark is a no-op.
func (s *Store) AddBookmark(collection, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO bookmarks (collection, card_id, created_at)
		VALUES (?, ?, ?)
	`, collection, cardID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

// RemoveBookmark removes a bookmark. Removing a missing bookmark is a no-op.
func (s *Store) RemoveBookmark(collection, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM bookmarks WHERE collection = ? AND card_id = ?`, collection, cardID); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

// ToggleBookmark flips a bookmark and reports whether the card is now
// bookmarked.
func (s *Store) ToggleBookmark(collection, cardID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM bookmarks WHERE collection = ? AND card_id = ?`, collection, cardID)
	if err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	if _, err := s.db.Exec(`
		INSERT INTO bookmarks (collection, card_id, created_at) VALUES (?, ?, ?)
	`, collection, cardID, time.Now().UnixMilli()); err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	return true, nil
}

// RecordFetch appends a load attempt to the fetch history.
func (s *Store) RecordFetch(r FetchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.FetchedAt.IsZero() {
		r.FetchedAt = time.Now()
	}
	var errText sql.NullString
	if r.Err != "" {
		errText = sql.NullString{String: r.Err, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO fetch_history (collection, endpoint, card_count, partial, error, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.Collection, r.Endpoint, r.CardCount, boolToInt(r.Partial), errText, r.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}
	return nil
}

// RecentFetches returns up to limit fetch records of a collection, newest first.
func (s *Store) RecentFetches(collection string, limit int) ([]FetchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT collection, endpoint, card_count, partial, error, fetched_at
		FROM fetch_history
		WHERE collection = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("query fetch history: %w", err)
	}
	defer rows.Close()

	records := []FetchRecord{}
	for rows.Next() {
		var r FetchRecord
		var partial int
		var errText sql.NullString
		var fetchedAt int64
		if err := rows.Scan(&r.Collection, &r.Endpoint, &r.CardCount, &partial, &errText, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch record: %w", err)
		}
		r.Partial = partial == 1
		r.Err = errText.String
		r.FetchedAt = time.UnixMilli(fetchedAt).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
