// Package daily decides when the cumulative activity counter must roll over
// to a new calendar day, and archives the prior day's total into the
// date-keyed history map.
//
// The boundary is the local calendar midnight, not "24 hours elapsed": a
// user active past midnight crosses the boundary immediately. All storage
// failures are swallowed and replaced with safe defaults, because the check
// runs inside a timer loop that must never crash.
package daily

import (
	"log/slog"
	"time"

	"github.com/edupulse/engage/sdk/go/internal/storage"
	"github.com/edupulse/engage/sdk/go/lifecycle"
)

// DateLayout is the ISO date format used for reset marks and history keys.
const DateLayout = "2006-01-02"

// maxHistoryDays bounds the persisted history map. The backend keeps the
// full record; the local copy only feeds the recent-activity views.
const maxHistoryDays = 90

// Tracker owns the last-reset mark and the historical activity map.
type Tracker struct {
	store  *storage.Store
	clock  lifecycle.Clock
	logger *slog.Logger
}

// NewTracker creates a daily boundary tracker.
func NewTracker(store *storage.Store, clock lifecycle.Clock, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		clock:  clock,
		logger: logger.With("component", "daily"),
	}
}

// ShouldReset reports whether the counter must roll over: true when no reset
// has ever been recorded, or when the persisted last-reset date falls on a
// different calendar day than now. Unparseable marks read as "never reset".
func (t *Tracker) ShouldReset() bool {
	raw, ok := t.store.GetString(storage.KeyLastResetDate)
	if !ok || raw == "" {
		return true
	}

	last, err := time.ParseInLocation(DateLayout, raw, time.Local)
	if err != nil {
		t.logger.Warn("unparseable last-reset date, forcing reset", "value", raw, "error", err)
		return true
	}

	now := t.clock()
	return last.Year() != now.Year() || last.Month() != now.Month() || last.Day() != now.Day()
}

// PerformReset archives currentTotal into the history map under archiveDate
// (or yesterday when archiveDate is empty), marks today as the last reset
// day, and returns 0 as the new counter value.
//
// The caller owns the surrounding protocol: it must regenerate the session
// ID and restart any open session before relying on the new counter.
func (t *Tracker) PerformReset(currentTotal int64, archiveDate string) int64 {
	if archiveDate == "" {
		archiveDate = t.clock().AddDate(0, 0, -1).Format(DateLayout)
	}

	if currentTotal > 0 {
		history := t.History()
		history[archiveDate] = currentTotal
		t.pruneHistory(history)
		t.store.SaveJSON(storage.KeyHistory, history)
	}

	t.MarkReset()
	t.logger.Info("daily activity reset", "archived_date", archiveDate, "archived_seconds", currentTotal)
	return 0
}

// MarkReset persists today as the last-reset date without archiving. Used at
// first run, when there is nothing to archive yet.
func (t *Tracker) MarkReset() {
	t.store.SetString(storage.KeyLastResetDate, t.clock().Format(DateLayout))
}

// History returns the date-keyed map of seconds spent per day. Missing or
// corrupt data reads as an empty map.
func (t *Tracker) History() map[string]int64 {
	history := make(map[string]int64)
	t.store.LoadJSON(storage.KeyHistory, &history)
	return history
}

// pruneHistory drops entries older than the retention window. Unparseable
// keys are dropped too; they can never be displayed or reconciled.
func (t *Tracker) pruneHistory(history map[string]int64) {
	cutoff := t.clock().AddDate(0, 0, -maxHistoryDays)
	for date := range history {
		d, err := time.ParseInLocation(DateLayout, date, time.Local)
		if err != nil || d.Before(cutoff) {
			delete(history, date)
		}
	}
}
