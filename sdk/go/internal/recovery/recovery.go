// Package recovery holds the pieces of the emergency path: the synchronous
// pre-unload backup record and the bounded ledger of already-reported
// sessions. The browser offers no guaranteed "session end" callback, so the
// unload handler persists what it can synchronously and the next launch
// folds it back in.
package recovery

import (
	"log/slog"

	"github.com/edupulse/engage/sdk/go/internal/storage"
)

// EmergencyBackup captures the in-flight session at unload/freeze time. It
// is written synchronously before the unload handler returns and deleted
// after the next launch folds it into restored state.
type EmergencyBackup struct {
	SessionStartMs         int64 `json:"session_start"`
	SessionDurationSeconds int64 `json:"session_duration"`
	TotalTimeBeforeSession int64 `json:"total_time_before_session"`
	TimestampMs            int64 `json:"timestamp"`
}

// WriteEmergency persists the backup record. Must complete synchronously.
func WriteEmergency(store *storage.Store, b EmergencyBackup) {
	store.SaveJSON(storage.KeyEmergencyBackup, b)
}

// LoadEmergency reads the backup record, if any.
func LoadEmergency(store *storage.Store) (EmergencyBackup, bool) {
	var b EmergencyBackup
	ok := store.LoadJSON(storage.KeyEmergencyBackup, &b)
	return b, ok
}

// ClearEmergency deletes the backup record. Missing record is a no-op.
func ClearEmergency(store *storage.Store) {
	store.Delete(storage.KeyEmergencyBackup)
}

// maxLedgerEntries bounds the processed-session ledger; the oldest entries
// are evicted first.
const maxLedgerEntries = 100

// Ledger remembers which sessions have already had a close notification
// initiated, keyed "{sessionStart}-{sessionDuration}". It guards against
// re-deriving the same session from two different code paths (a
// before-unload firing after a visibility change already closed it).
//
// Keys are added when a send is initiated, not when it is confirmed.
type Ledger struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewLedger creates a Ledger over the durable store.
func NewLedger(store *storage.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger.With("component", "processed-ledger"),
	}
}

// MarkIfNew records key and returns true if it was not already present.
// Returns false when the session was already reported by another path.
func (l *Ledger) MarkIfNew(key string) bool {
	keys := l.load()
	for _, k := range keys {
		if k == key {
			l.logger.Debug("session already processed, suppressing send", "key", key)
			return false
		}
	}

	keys = append(keys, key)
	if len(keys) > maxLedgerEntries {
		keys = keys[len(keys)-maxLedgerEntries:]
	}
	l.store.SaveJSON(storage.KeyProcessedList, keys)
	return true
}

// Contains reports whether key is present without modifying the ledger.
func (l *Ledger) Contains(key string) bool {
	for _, k := range l.load() {
		if k == key {
			return true
		}
	}
	return false
}

func (l *Ledger) load() []string {
	var keys []string
	l.store.LoadJSON(storage.KeyProcessedList, &keys)
	return keys
}
