package storage

// Storage keys. Every durable record the tracking core owns lives under one
// of these; the auth token key is read-only here (owned by the embedding
// application's auth layer).
const (
	KeyDeviceID        = "engage:device_id"
	KeySessionID       = "engage:session_id"
	KeyLastResetDate   = "engage:last_reset_date"
	KeySessionBackup   = "engage:session_backup"
	KeyTotalTimeMirror = "engage:total_time_backup"
	KeyEmergencyBackup = "engage:emergency_session_backup"
	KeyLastSync        = "engage:last_sync"
	KeySessionSync     = "engage:last_session_sync"
	KeyProcessedList   = "engage:processed_sessions"
	KeyHistory         = "engage:historical_activity"
	KeyPendingSends    = "engage:pending_activity_data"
	KeyAuthToken       = "engage:auth_token"
)

// Session is one closed activity session. Immutable once written: endTime is
// set exactly once and entries are appended to history, never mutated.
type Session struct {
	// StartTimeMs is the session start, milliseconds since epoch.
	StartTimeMs int64 `json:"start_time"`

	// EndTimeMs is the session end, milliseconds since epoch.
	EndTimeMs int64 `json:"end_time"`

	// DurationSeconds is floor((end-start)/1000) clamped to [0, 86400].
	DurationSeconds int64 `json:"duration_seconds"`
}

// SessionBackup is the periodic snapshot of tracker state. Last write wins;
// the open session is represented only by CurrentSessionStartMs, never as a
// partially-closed history entry.
type SessionBackup struct {
	TotalTimeSpent        int64     `json:"total_time_spent"`
	ActivityHistory       []Session `json:"activity_history"`
	IsActive              bool      `json:"is_active"`
	CurrentSessionStartMs int64     `json:"current_session_start,omitempty"`
	LastBackupMs          int64     `json:"last_backup"`
}
