// Package storage provides the SDK's durable key-value store, the analogue
// of browser local storage. It is backed by modernc.org/sqlite (pure Go, no
// CGO) in WAL mode, with schema migrations applied on open.
//
// The store is deliberately best-effort: reads treat missing or corrupt
// values as absent, and writes log failures instead of returning them. The
// tracking core must keep running when storage misbehaves; the worst
// acceptable outcome is under-counted activity time, never a crash.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// Store is a namespaced durable key-value store.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the store at path with WAL mode and a busy
// timeout, and applies migrations. A nil logger falls back to slog.Default.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping storage: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "storage"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetString returns the raw value for key, or ("", false) when absent or
// when the read fails.
func (s *Store) GetString(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.logger.Warn("storage read failed, treating as absent", "key", key, "error", err)
		return "", false
	}
	return value, true
}

// SetString stores value under key. Failures are logged and swallowed.
func (s *Store) SetString(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		s.logger.Warn("storage write skipped", "key", key, "error", err)
	}
}

// Delete removes key. A missing key is a no-op; failures are logged.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		s.logger.Warn("storage delete skipped", "key", key, "error", err)
	}
}

// LoadJSON reads the value for key into v. It returns false when the key is
// absent or the stored blob does not parse; corrupt data is logged and
// treated exactly like missing data.
func (s *Store) LoadJSON(key string, v any) bool {
	raw, ok := s.GetString(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn("corrupt storage value, treating as absent", "key", key, "error", err)
		return false
	}
	return true
}

// SaveJSON serializes v under key, best-effort.
func (s *Store) SaveJSON(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("storage write skipped, value not serializable", "key", key, "error", err)
		return
	}
	s.SetString(key, string(raw))
}
