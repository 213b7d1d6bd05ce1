// Package syncer gates outbound activity sends. It holds the two guards the
// tracking core layers on top of each other: a dedup ledger that suppresses
// duplicate successful deliveries, and a lock/single-flight guard that
// prevents concurrent attempts. The ledger check is advisory and can race;
// the guard is what serializes attempts. Both exist on purpose.
package syncer

import (
	"log/slog"
	"time"

	"github.com/edupulse/engage/sdk/go/internal/storage"
	"github.com/edupulse/engage/sdk/go/lifecycle"
)

// MinSyncInterval is the sliding window within which an identical send is
// considered a near-duplicate and skipped.
const MinSyncInterval = 30 * time.Second

// cumulativeSlot is the legacy dedup ledger slot for cumulative-total sends.
type cumulativeSlot struct {
	LastSyncTimeMs int64 `json:"last_sync_time"`
	LastSyncValue  int64 `json:"last_sync_value"`
}

// sessionSlot is the dedup ledger slot for per-session sends.
type sessionSlot struct {
	SessionID       string `json:"session_id"`
	DurationSeconds int64  `json:"session_duration"`
	TimestampMs     int64  `json:"timestamp"`
}

// Deduplicator is the last line of defense against reporting the same
// logical "session ended" condition twice. Overlapping browser events
// (visibility change, blur, pagehide, freeze) can all observe the same end
// within milliseconds; whichever attempt succeeds first records its slot
// here, and the rest are skipped.
//
// This is an exact-match plus time-window check, not a rate limiter: a
// different duration for the same session is not deduplicated.
type Deduplicator struct {
	store  *storage.Store
	clock  lifecycle.Clock
	logger *slog.Logger
	window time.Duration
}

// NewDeduplicator creates a Deduplicator with the default 30s window.
func NewDeduplicator(store *storage.Store, clock lifecycle.Clock, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		store:  store,
		clock:  clock,
		logger: logger.With("component", "sync-dedup"),
		window: MinSyncInterval,
	}
}

// ShouldSkipCumulative reports whether a cumulative-total send of value is a
// near-duplicate of the last successful one. The per-session slot
// (ShouldSkipSession) superseded this check for all current reporting; the
// cumulative slot remains for stores written by builds that still synced
// daily totals.
func (d *Deduplicator) ShouldSkipCumulative(value int64) bool {
	var slot cumulativeSlot
	if !d.store.LoadJSON(storage.KeyLastSync, &slot) {
		return false
	}

	if slot.LastSyncValue != value {
		return false
	}
	if !d.withinWindow(slot.LastSyncTimeMs) {
		return false
	}

	d.logger.Debug("skipping duplicate cumulative sync", "value", value)
	return true
}

// RecordCumulative overwrites the cumulative ledger slot. Call only after
// the network collaborator confirms delivery. Superseded by RecordSession,
// kept alongside ShouldSkipCumulative for the legacy slot.
func (d *Deduplicator) RecordCumulative(value int64) {
	d.store.SaveJSON(storage.KeyLastSync, cumulativeSlot{
		LastSyncTimeMs: d.clock().UnixMilli(),
		LastSyncValue:  value,
	})
}

// ShouldSkipSession reports whether a per-session send of (sessionID,
// durationSeconds) duplicates the last successfully recorded one.
func (d *Deduplicator) ShouldSkipSession(sessionID string, durationSeconds int64) bool {
	var slot sessionSlot
	if !d.store.LoadJSON(storage.KeySessionSync, &slot) {
		return false
	}

	if slot.SessionID != sessionID || slot.DurationSeconds != durationSeconds {
		return false
	}
	if !d.withinWindow(slot.TimestampMs) {
		return false
	}

	d.logger.Debug("skipping duplicate session sync",
		"session_id", sessionID,
		"duration_seconds", durationSeconds,
	)
	return true
}

// RecordSession overwrites the per-session ledger slot. Call only after
// confirmed delivery (HTTP 2xx, or a beacon accepted at enqueue time).
func (d *Deduplicator) RecordSession(sessionID string, durationSeconds int64) {
	d.store.SaveJSON(storage.KeySessionSync, sessionSlot{
		SessionID:       sessionID,
		DurationSeconds: durationSeconds,
		TimestampMs:     d.clock().UnixMilli(),
	})
}

func (d *Deduplicator) withinWindow(recordedMs int64) bool {
	elapsed := d.clock().UnixMilli() - recordedMs
	return elapsed >= 0 && elapsed < d.window.Milliseconds()
}
