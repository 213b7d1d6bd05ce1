// Package store persists collector-side activity data: a log of reported
// sessions and an upsert table of per-client daily totals. Backed by
// modernc.org/sqlite (pure Go, no CGO) in WAL mode with versioned
// migrations applied on open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// SessionRecord is one reported activity session.
type SessionRecord struct {
	ClientID        string
	SessionID       string
	DeviceID        string
	AccountID       string
	Date            string // "2006-01-02"
	StartTimeMs     int64
	EndTimeMs       int64
	DurationSeconds int64
	EndReason       string
	Browser         string
	OS              string
	DeviceType      string
}

// DailyTotal is one client-day aggregate.
type DailyTotal struct {
	ClientID string
	Date     string
	Seconds  int64
}

// Store is the collector's durable activity store.
// It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the store at path with WAL mode and a busy
// timeout, and applies migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports store health for the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordSession appends one session to the log.
func (s *Store) RecordSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			client_id, session_id, device_id, account_id, date,
			start_time_ms, end_time_ms, duration_seconds, end_reason,
			browser, os, device_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ClientID, rec.SessionID, rec.DeviceID, rec.AccountID, rec.Date,
		rec.StartTimeMs, rec.EndTimeMs, rec.DurationSeconds, rec.EndReason,
		rec.Browser, rec.OS, rec.DeviceType,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// AddDailyTime adds seconds to the client's total for date, creating the
// row if needed.
func (s *Store) AddDailyTime(ctx context.Context, clientID, date string, seconds int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_activity (client_id, date, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT (client_id, date) DO UPDATE SET seconds = seconds + excluded.seconds`,
		clientID, date, seconds,
	)
	if err != nil {
		return fmt.Errorf("add daily time: %w", err)
	}
	return nil
}

// SetDailyTimeIfGreater raises the client's total for date to seconds if
// the stored value is lower. Legacy cumulative reports carry the whole
// day's total, so replays and stale checkpoints must never shrink it.
func (s *Store) SetDailyTimeIfGreater(ctx context.Context, clientID, date string, seconds int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_activity (client_id, date, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT (client_id, date) DO UPDATE SET seconds = MAX(seconds, excluded.seconds)`,
		clientID, date, seconds,
	)
	if err != nil {
		return fmt.Errorf("set daily time: %w", err)
	}
	return nil
}

// DailyHistory returns the client's date-keyed daily totals, newest first
// limited to limit days (0 means no limit).
func (s *Store) DailyHistory(ctx context.Context, clientID string, limit int) (map[string]int64, error) {
	query := `SELECT date, seconds FROM daily_activity WHERE client_id = ? ORDER BY date DESC`
	args := []any{clientID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily history: %w", err)
	}
	defer rows.Close()

	history := make(map[string]int64)
	for rows.Next() {
		var date string
		var seconds int64
		if err := rows.Scan(&date, &seconds); err != nil {
			return nil, fmt.Errorf("scan daily history: %w", err)
		}
		history[date] = seconds
	}
	return history, rows.Err()
}

// TotalsBefore returns every client-day aggregate strictly older than
// cutoff (exclusive), ordered by client then date. Used by the archiver.
func (s *Store) TotalsBefore(ctx context.Context, cutoff string) ([]DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, date, seconds FROM daily_activity
		WHERE date < ? ORDER BY client_id, date`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("totals before: %w", err)
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var t DailyTotal
		if err := rows.Scan(&t.ClientID, &t.Date, &t.Seconds); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// EvictBefore removes aggregates and session rows strictly older than
// cutoff. Called after a successful archive export.
func (s *Store) EvictBefore(ctx context.Context, cutoff string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evict: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_activity WHERE date < ?`, cutoff); err != nil {
		return fmt.Errorf("evict daily activity: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE date < ?`, cutoff); err != nil {
		return fmt.Errorf("evict sessions: %w", err)
	}

	return tx.Commit()
}

// SessionCount returns the number of logged sessions for a client, for
// tests and admin introspection.
func (s *Store) SessionCount(ctx context.Context, clientID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE client_id = ?`, clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("session count: %w", err)
	}
	return n, nil
}
