package store

import (
	"database/sql"
	"fmt"
)

// migration is a versioned schema change.
type migration struct {
	version int
	up      string
}

// migrations is the ordered schema history. New migrations must be appended,
// never edited in place.
var migrations = []migration{
	{
		version: 1,
		up: `
CREATE TABLE IF NOT EXISTS sessions (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id        TEXT NOT NULL,
    session_id       TEXT NOT NULL,
    device_id        TEXT NOT NULL DEFAULT '',
    account_id       TEXT NOT NULL DEFAULT '',
    date             TEXT NOT NULL,
    start_time_ms    INTEGER NOT NULL DEFAULT 0,
    end_time_ms      INTEGER NOT NULL DEFAULT 0,
    duration_seconds INTEGER NOT NULL,
    end_reason       TEXT NOT NULL DEFAULT '',
    browser          TEXT NOT NULL DEFAULT '',
    os               TEXT NOT NULL DEFAULT '',
    device_type      TEXT NOT NULL DEFAULT '',
    received_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_client_date ON sessions (client_id, date);

CREATE TABLE IF NOT EXISTS daily_activity (
    client_id TEXT NOT NULL,
    date      TEXT NOT NULL,
    seconds   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (client_id, date)
);
`,
	},
}

// runMigrations applies pending migrations, each inside a transaction.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}
