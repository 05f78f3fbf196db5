package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lbm-go/internal/lbm"
	"lbm-go/internal/localstore/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements lbm.LocalStore on a single SQLite file. It holds
// the optimistic config cache, the per-machine reaction ledger and the
// member session record; all of it is disposable.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the store and migrates it to the
// latest schema. path can be a file path or ":memory:".
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating local store: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) LoadConfigCache() ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM config_cache WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not cached yet
	}
	if err != nil {
		return nil, fmt.Errorf("reading config cache: %w", err)
	}
	return payload, nil
}

func (s *SQLiteStore) SaveConfigCache(payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO config_cache (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		payload, time.Now())
	if err != nil {
		return fmt.Errorf("writing config cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Reaction(postID int64) (string, error) {
	var action string
	err := s.db.QueryRow("SELECT action FROM reactions WHERE post_id = ?", postID).Scan(&action)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // No reaction recorded
	}
	if err != nil {
		return "", fmt.Errorf("reading reaction for post %d: %w", postID, err)
	}
	return action, nil
}

func (s *SQLiteStore) SetReaction(postID int64, action string) error {
	_, err := s.db.Exec(`
		INSERT INTO reactions (post_id, action, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET action = excluded.action, updated_at = excluded.updated_at`,
		postID, action, time.Now())
	if err != nil {
		return fmt.Errorf("writing reaction for post %d: %w", postID, err)
	}
	return nil
}

func (s *SQLiteStore) ClearReaction(postID int64) error {
	if _, err := s.db.Exec("DELETE FROM reactions WHERE post_id = ?", postID); err != nil {
		return fmt.Errorf("clearing reaction for post %d: %w", postID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadSession() ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM session WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No session stored
	}
	if err != nil {
		return nil, fmt.Errorf("reading session record: %w", err)
	}
	return payload, nil
}

func (s *SQLiteStore) SaveSession(payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO session (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		payload, time.Now())
	if err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearSession() error {
	if _, err := s.db.Exec("DELETE FROM session WHERE id = 1"); err != nil {
		return fmt.Errorf("clearing session record: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements lbm.LocalStore
var _ lbm.LocalStore = (*SQLiteStore)(nil)
