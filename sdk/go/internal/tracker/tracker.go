// Package tracker owns the activity session state machine: the one place
// that decides when a session starts, when it ends, and what gets reported.
//
// The machine has two states, Idle and Active. Lifecycle signals move it
// between them; three timers re-enter it spontaneously (the 2-minute
// checkpoint rollover, the 60-second daily boundary check, and the
// 10-second snapshot). Local state is always updated and persisted
// synchronously; network notification happens afterwards and its failure
// never rolls a transition back.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/edupulse/engage/sdk/go/internal/daily"
	"github.com/edupulse/engage/sdk/go/internal/identity"
	"github.com/edupulse/engage/sdk/go/internal/recovery"
	"github.com/edupulse/engage/sdk/go/internal/storage"
	"github.com/edupulse/engage/sdk/go/internal/syncer"
	"github.com/edupulse/engage/sdk/go/internal/transport"
	"github.com/edupulse/engage/sdk/go/lifecycle"
)

// MaxSessionSeconds caps a single reported session. Durations beyond it are
// clock skew or runaway sessions, not real engagement.
const MaxSessionSeconds = 86400

// Default timer intervals.
const (
	DefaultCheckpointInterval = 2 * time.Minute
	DefaultDailyCheckInterval = time.Minute
	DefaultBackupInterval     = 10 * time.Second
	DefaultAbsenceThreshold   = 30 * time.Minute
)

// Deps are the collaborators the state machine drives. All are required
// except Beacon and Queue behaviours that degrade gracefully when the
// transport is unconfigured.
type Deps struct {
	Store     *storage.Store
	Identity  *identity.Provider
	Daily     *daily.Tracker
	Dedup     *syncer.Deduplicator
	Guard     *syncer.Guard
	Ledger    *recovery.Ledger
	Transport *transport.Client
	Beacon    transport.Beacon
	Queue     *transport.OfflineQueue
	Scheduler lifecycle.Scheduler
	Clock     lifecycle.Clock
	Logger    *slog.Logger
}

// Options tune the state machine per embedding application.
type Options struct {
	// UserAgent is the host browser's user-agent string, used for the
	// device-info part of the fingerprint.
	UserAgent string

	// AccountID is the logged-in account, if any. Supplied by the excluded
	// auth layer; empty means anonymous.
	AccountID string

	// WasReload indicates the page load was a reload rather than a fresh
	// navigation, per the host's navigation-timing entry. Only reloads fold
	// the emergency backup back in.
	WasReload bool

	CheckpointInterval time.Duration
	DailyCheckInterval time.Duration
	BackupInterval     time.Duration
	AbsenceThreshold   time.Duration

	// CheckpointRetry overrides the checkpoint send retry schedule.
	CheckpointRetry transport.RetryStrategy
}

// State is a read-only snapshot of the machine for render targets.
type State struct {
	IsActive              bool
	TotalTimeSpent        int64
	CurrentSessionStartMs int64
	History               []storage.Session
	LastResetDate         string
}

// Tracker is the activity session state machine.
// It is safe for concurrent use: signal handlers and timers interleave.
type Tracker struct {
	mu sync.Mutex

	deps Deps
	opts Options

	isActive     bool
	sessionStart time.Time
	total        int64
	history      []storage.Session
	online       bool

	cancels []lifecycle.CancelFunc
	started bool

	logger *slog.Logger

	// spawn runs side-effecting network flows; tests replace it to run
	// them inline.
	spawn func(fn func())
}

// New creates a Tracker. Timers do not run and no state is restored until
// Start.
func New(deps Deps, opts Options) *Tracker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if opts.DailyCheckInterval <= 0 {
		opts.DailyCheckInterval = DefaultDailyCheckInterval
	}
	if opts.BackupInterval <= 0 {
		opts.BackupInterval = DefaultBackupInterval
	}
	if opts.AbsenceThreshold <= 0 {
		opts.AbsenceThreshold = DefaultAbsenceThreshold
	}
	if opts.CheckpointRetry == nil {
		opts.CheckpointRetry = transport.CheckpointRetry
	}

	return &Tracker{
		deps:   deps,
		opts:   opts,
		online: true,
		logger: deps.Logger.With("component", "tracker"),
		spawn:  func(fn func()) { go fn() },
	}
}

// Start restores persisted state, runs recovery and the daily boundary
// bootstrap, arms the timers, and opens the first session (the app mount is
// an activity-resumed signal).
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true

	t.restoreLocked()
	t.checkDailyBoundaryLocked()

	t.cancels = append(t.cancels,
		t.deps.Scheduler.Repeat(t.opts.CheckpointInterval, t.checkpointTick),
		t.deps.Scheduler.Repeat(t.opts.DailyCheckInterval, t.dailyTick),
		t.deps.Scheduler.Repeat(t.opts.BackupInterval, t.backupTick),
	)

	t.startSessionLocked(t.deps.Clock())
	t.persistSnapshotLocked()
	t.mu.Unlock()
}

// Stop ends any open session with reason Unmount, cancels every timer, and
// persists a final snapshot. The provider wraps the whole app lifetime, so
// leaking a timer or listener here would leak it forever.
func (t *Tracker) Stop() {
	t.EndSession(ReasonUnmount)

	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = nil
	t.started = false
	t.persistSnapshotLocked()
	t.mu.Unlock()
}

// HandleSignal routes one lifecycle signal through the transition table.
func (t *Tracker) HandleSignal(sig lifecycle.Signal) {
	switch sig.Kind {
	case lifecycle.VisibilityVisible, lifecycle.FocusGained:
		t.ResumeSession()

	case lifecycle.VisibilityHidden:
		t.EndSession(ReasonVisibilityHidden)

	case lifecycle.FocusLost:
		if sig.WithinPage || sig.ActiveElement == "IFRAME" || sig.ActiveElement == "VIDEO" {
			// Focus moved inside the document (or into an embedded player):
			// the user did not leave.
			t.logger.Debug("ignoring in-page blur", "active_element", sig.ActiveElement)
			return
		}
		t.EndSession(ReasonWindowBlur)

	case lifecycle.PageHide:
		t.EndSession(ReasonPageHide)

	case lifecycle.PageFreeze:
		t.EndSession(ReasonPageFreeze)

	case lifecycle.PowerChange:
		t.EndSession(ReasonPowerChange)

	case lifecycle.BeforeUnload:
		t.EmergencyShutdown()

	case lifecycle.Online:
		t.mu.Lock()
		t.online = true
		t.mu.Unlock()
		t.spawn(t.drainOffline)

	case lifecycle.Offline:
		t.mu.Lock()
		t.online = false
		t.mu.Unlock()
	}
}

// ResumeSession opens a session if none is open. Idempotent while Active.
func (t *Tracker) ResumeSession() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.isActive {
		return
	}
	t.startSessionLocked(t.deps.Clock())
	t.persistSnapshotLocked()
}

// EndSession closes the open session, persists the transition, and kicks
// off the asynchronous close notification. Re-entrant calls for the same
// session (overlapping blur + visibility events) are abandoned at the
// session lock.
func (t *Tracker) EndSession(reason EndReason) {
	t.mu.Lock()
	if !t.isActive {
		t.mu.Unlock()
		return
	}

	startMs := t.sessionStart.UnixMilli()
	if t.deps.Guard.IsSessionBeingProcessed(startMs) {
		t.mu.Unlock()
		t.logger.Debug("end-session flow already running", "session_start", startMs, "reason", reason.String())
		return
	}
	if !t.deps.Guard.LockSession(startMs) {
		t.mu.Unlock()
		return
	}

	sess := t.closeSessionLocked(t.deps.Clock())
	t.persistSnapshotLocked()
	t.mu.Unlock()

	t.logger.Info("session ended",
		"reason", reason.String(),
		"duration_seconds", sess.DurationSeconds,
		"total_time_spent", t.Snapshot().TotalTimeSpent,
	)

	t.spawn(func() {
		defer t.deps.Guard.UnlockSession(startMs)
		t.notifyClose(sess, reason)
	})
}

// notifyClose sends the close-session report, gated by the processed-session
// ledger and the dedup ledger. Failures queue the payload for offline sync;
// local state is already committed either way.
func (t *Tracker) notifyClose(sess storage.Session, reason EndReason) {
	key := fmt.Sprintf("%d-%d", sess.StartTimeMs, sess.DurationSeconds)
	if !t.deps.Ledger.MarkIfNew(key) {
		return
	}

	sessionID := t.deps.Identity.SessionID()
	if t.deps.Dedup.ShouldSkipSession(sessionID, sess.DurationSeconds) {
		return
	}

	if !t.deps.Transport.Configured() {
		t.logger.Warn("transport not configured, skipping close notification")
		return
	}

	now := t.deps.Clock()
	info := identity.ParseUserAgent(t.opts.UserAgent)
	payload := transport.ActivityLogPayload{
		Date:                   now.Format(daily.DateLayout),
		TimeSpendSeconds:       sess.DurationSeconds,
		TimeSpend:              transport.FormatDuration(sess.DurationSeconds),
		SessionID:              sessionID,
		DeviceID:               t.deps.Identity.DeviceID(),
		DeviceInfo:             info,
		AccountID:              t.opts.AccountID,
		TimestampMs:            now.UnixMilli(),
		SessionStartTimeMs:     sess.StartTimeMs,
		SessionEndTimeMs:       sess.EndTimeMs,
		SessionDurationSeconds: sess.DurationSeconds,
		EventType:              "session_end",
		SessionEndReason:       reason.String(),
	}

	err := t.deps.Guard.Do("close_session:"+reason.String(), func() error {
		return t.deps.Transport.PostActivityLog(context.Background(), payload)
	})
	if err != nil {
		t.logger.Warn("close notification failed, queueing for offline sync", "error", err)
		t.deps.Queue.Push(transport.PendingSend{ActivityLog: &payload, QueuedAtMs: now.UnixMilli()})
		return
	}
	t.deps.Dedup.RecordSession(sessionID, sess.DurationSeconds)
}

// EmergencyShutdown is the synchronous before-unload path: persist the
// in-flight session, then make exactly one beacon attempt, gated by the
// same dedup and lock checks as a normal close. Never both a beacon and a
// fetch-based call for one session.
func (t *Tracker) EmergencyShutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isActive {
		return
	}

	now := t.deps.Clock()
	startMs := t.sessionStart.UnixMilli()
	dur := t.clampDuration(t.sessionStart, now)

	recovery.WriteEmergency(t.deps.Store, recovery.EmergencyBackup{
		SessionStartMs:         startMs,
		SessionDurationSeconds: dur,
		TotalTimeBeforeSession: t.total,
		TimestampMs:            now.UnixMilli(),
	})

	if !t.deps.Ledger.MarkIfNew(fmt.Sprintf("%d-%d", startMs, dur)) {
		return
	}
	sessionID := t.deps.Identity.SessionID()
	if t.deps.Dedup.ShouldSkipSession(sessionID, dur) {
		return
	}
	if !t.deps.Guard.LockSession(startMs) {
		return
	}
	defer t.deps.Guard.UnlockSession(startMs)

	if !t.deps.Transport.Configured() || t.deps.Beacon == nil {
		return
	}

	info := identity.ParseUserAgent(t.opts.UserAgent)
	body, err := transport.MarshalTrackTime(transport.TrackTimePayload{
		Date:             now.Format(daily.DateLayout),
		TimeSpendSeconds: dur,
		SessionID:        sessionID,
		DeviceInfo:       &info,
		DeviceType:       info.DeviceType,
		SessionOnly:      true,
	})
	if err != nil {
		return
	}

	if t.deps.Beacon.Send(t.deps.Transport.TrackTimePath(), body) {
		t.deps.Dedup.RecordSession(sessionID, dur)
	}
}

// checkpointTick is the 2-minute rolling checkpoint: report the partial
// session as if it ended, then immediately reopen at now, so the total
// keeps accruing without ever reporting an unbounded single session.
func (t *Tracker) checkpointTick() {
	t.mu.Lock()
	if !t.isActive {
		t.mu.Unlock()
		if t.online {
			t.spawn(t.drainOffline)
		}
		return
	}

	now := t.deps.Clock()
	sess := t.closeSessionLocked(now)
	t.startSessionLocked(now)
	t.persistSnapshotLocked()
	online := t.online
	t.mu.Unlock()

	if online {
		t.spawn(t.drainOffline)
	}
	if sess.DurationSeconds <= 0 {
		return
	}
	t.spawn(func() { t.sendCheckpoint(sess) })
}

// sendCheckpoint reports a checkpoint slice over the legacy track-time
// endpoint with the bounded retry schedule. On exhaustion the cycle is
// abandoned; the next tick starts fresh.
func (t *Tracker) sendCheckpoint(sess storage.Session) {
	sessionID := t.deps.Identity.SessionID()
	if t.deps.Dedup.ShouldSkipSession(sessionID, sess.DurationSeconds) {
		return
	}
	if !t.deps.Transport.Configured() {
		t.logger.Debug("transport not configured, skipping checkpoint")
		return
	}

	info := identity.ParseUserAgent(t.opts.UserAgent)
	payload := transport.TrackTimePayload{
		Date:             time.UnixMilli(sess.EndTimeMs).Format(daily.DateLayout),
		TimeSpendSeconds: sess.DurationSeconds,
		SessionID:        sessionID,
		DeviceInfo:       &info,
		SessionOnly:      true,
	}

	err := t.deps.Guard.Do("checkpoint", func() error {
		return t.deps.Transport.PostTrackTime(context.Background(), payload, t.opts.CheckpointRetry)
	})
	if err != nil {
		t.logger.Warn("checkpoint send abandoned until next tick", "error", err)
		return
	}
	t.deps.Dedup.RecordSession(sessionID, sess.DurationSeconds)
}

// dailyTick crosses the local-midnight boundary: the accumulated total is
// archived under the day it belongs to and the counter restarts at zero.
// An open session is not closed; its elapsed time is folded into the old
// day and the session restarts at now on the new day.
func (t *Tracker) dailyTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkDailyBoundaryLocked()
}

// checkDailyBoundaryLocked runs the boundary check. Caller holds mu.
func (t *Tracker) checkDailyBoundaryLocked() {
	lastReset, hadReset := t.deps.Store.GetString(storage.KeyLastResetDate)
	if !t.deps.Daily.ShouldReset() {
		return
	}

	if !hadReset || lastReset == "" {
		// First run: nothing to archive yet.
		t.deps.Daily.MarkReset()
		t.deps.Identity.NewSessionID()
		return
	}

	now := t.deps.Clock()
	if t.isActive {
		elapsed := t.clampDuration(t.sessionStart, now)
		t.total += elapsed
		t.sessionStart = now
	}

	t.total = t.deps.Daily.PerformReset(t.total, lastReset)
	t.history = nil
	t.deps.Identity.NewSessionID()
	t.persistSnapshotLocked()
}

// backupTick snapshots current state, including the live elapsed time of an
// open session, to durable storage. No network call.
func (t *Tracker) backupTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persistSnapshotLocked()
}

// drainOffline replays the offline queue under the single-flight gate.
func (t *Tracker) drainOffline() {
	if t.deps.Queue.Len() == 0 || !t.deps.Transport.Configured() {
		return
	}
	_ = t.deps.Guard.Do("offline_drain", func() error {
		t.deps.Queue.Drain(context.Background(), t.deps.Transport)
		return nil
	})
}

// Snapshot returns a copy of current state for render targets.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]storage.Session, len(t.history))
	copy(history, t.history)

	var startMs int64
	if t.isActive {
		startMs = t.sessionStart.UnixMilli()
	}

	lastReset, _ := t.deps.Store.GetString(storage.KeyLastResetDate)

	return State{
		IsActive:              t.isActive,
		TotalTimeSpent:        t.total,
		CurrentSessionStartMs: startMs,
		History:               history,
		LastResetDate:         lastReset,
	}
}

// restoreLocked loads the last snapshot, rotates the session ID after a
// long absence, and folds the emergency backup in when the load was a
// reload. Caller holds mu.
func (t *Tracker) restoreLocked() {
	now := t.deps.Clock()

	var backup storage.SessionBackup
	if t.deps.Store.LoadJSON(storage.KeySessionBackup, &backup) {
		t.total = backup.TotalTimeSpent
		t.history = backup.ActivityHistory

		if backup.LastBackupMs > 0 {
			absent := now.UnixMilli() - backup.LastBackupMs
			if absent > t.opts.AbsenceThreshold.Milliseconds() {
				t.logger.Info("long absence detected, rotating session id", "absent_ms", absent)
				t.deps.Identity.NewSessionID()
			}
		}
	}

	if !t.opts.WasReload {
		// A fresh navigation never folds the record in. Drop it now so a
		// later unrelated reload cannot resurrect it into that day's total.
		recovery.ClearEmergency(t.deps.Store)
		return
	}

	em, ok := recovery.LoadEmergency(t.deps.Store)
	if !ok {
		return
	}
	if em.TimestampMs > 0 && now.UnixMilli()-em.TimestampMs > t.opts.AbsenceThreshold.Milliseconds() {
		t.logger.Info("discarding stale emergency backup",
			"age_ms", now.UnixMilli()-em.TimestampMs)
		recovery.ClearEmergency(t.deps.Store)
		return
	}

	dur := clampSeconds(em.SessionDurationSeconds)
	t.total += dur
	t.history = append(t.history, storage.Session{
		StartTimeMs:     em.SessionStartMs,
		EndTimeMs:       em.SessionStartMs + dur*1000,
		DurationSeconds: dur,
	})
	recovery.ClearEmergency(t.deps.Store)
	t.persistSnapshotLocked()

	t.logger.Info("recovered uncommitted session after reload",
		"duration_seconds", dur,
		"total_time_spent", t.total,
	)
}

// startSessionLocked opens a session at now. Caller holds mu.
func (t *Tracker) startSessionLocked(now time.Time) {
	t.isActive = true
	t.sessionStart = now
}

// closeSessionLocked closes the open session at now: clamped duration,
// history append, total update. Caller holds mu and has checked isActive.
func (t *Tracker) closeSessionLocked(now time.Time) storage.Session {
	dur := t.clampDuration(t.sessionStart, now)
	sess := storage.Session{
		StartTimeMs:     t.sessionStart.UnixMilli(),
		EndTimeMs:       now.UnixMilli(),
		DurationSeconds: dur,
	}

	t.history = append(t.history, sess)
	t.total += dur
	t.isActive = false
	t.sessionStart = time.Time{}

	return sess
}

// persistSnapshotLocked writes the session backup and the redundant scalar
// mirror (which includes live elapsed time). Caller holds mu.
func (t *Tracker) persistSnapshotLocked() {
	now := t.deps.Clock()

	var startMs, live int64
	if t.isActive {
		startMs = t.sessionStart.UnixMilli()
		live = t.clampDuration(t.sessionStart, now)
	}

	t.deps.Store.SaveJSON(storage.KeySessionBackup, storage.SessionBackup{
		TotalTimeSpent:        t.total,
		ActivityHistory:       t.history,
		IsActive:              t.isActive,
		CurrentSessionStartMs: startMs,
		LastBackupMs:          now.UnixMilli(),
	})
	t.deps.Store.SetString(storage.KeyTotalTimeMirror, strconv.FormatInt(t.total+live, 10))
}

// clampDuration computes floor((end-start)/1000) clamped to
// [0, MaxSessionSeconds], logging anomalies. The close transition proceeds
// regardless.
func (t *Tracker) clampDuration(start, end time.Time) int64 {
	if end.Before(start) {
		t.logger.Warn("negative session duration, clamping to 0",
			"start", start.UnixMilli(), "end", end.UnixMilli())
		return 0
	}
	sec := int64(end.Sub(start) / time.Second)
	if sec > MaxSessionSeconds {
		t.logger.Warn("session duration exceeds cap, clamping",
			"duration_seconds", sec, "cap", MaxSessionSeconds)
		return MaxSessionSeconds
	}
	return sec
}

// clampSeconds clamps an already-computed duration to [0, MaxSessionSeconds].
func clampSeconds(sec int64) int64 {
	if sec < 0 {
		return 0
	}
	if sec > MaxSessionSeconds {
		return MaxSessionSeconds
	}
	return sec
}
