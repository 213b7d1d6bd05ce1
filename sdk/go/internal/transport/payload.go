package transport

import (
	"encoding/json"
	"fmt"

	"github.com/edupulse/engage/sdk/go/internal/identity"
)

// ActivityLogPayload is the body of the per-session activity report.
// The hyphenated field names are part of the backend contract.
type ActivityLogPayload struct {
	Date             string              `json:"date"`
	TimeSpendSeconds int64               `json:"time-spend-seconds"`
	TimeSpend        string              `json:"time-spend"`
	SessionID        string              `json:"session_id"`
	DeviceID         string              `json:"device_id"`
	DeviceInfo       identity.DeviceInfo `json:"device_info"`
	AccountID        string              `json:"account_id,omitempty"`
	TimestampMs      int64               `json:"timestamp"`

	SessionStartTimeMs     int64  `json:"session_start_time,omitempty"`
	SessionEndTimeMs       int64  `json:"session_end_time,omitempty"`
	SessionDurationSeconds int64  `json:"session_duration_seconds,omitempty"`
	EventType              string `json:"event_type,omitempty"`
	SessionEndReason       string `json:"session_end_reason,omitempty"`
}

// TrackTimePayload is the legacy/simplified body used by periodic
// checkpoints and beacon sends.
type TrackTimePayload struct {
	Date             string               `json:"date,omitempty"`
	TimeSpendSeconds int64                `json:"time-spend-seconds"`
	SessionID        string               `json:"session_id"`
	DeviceInfo       *identity.DeviceInfo `json:"device_info,omitempty"`
	DeviceType       string               `json:"device_type,omitempty"`
	SessionOnly      bool                 `json:"session_only"`
}

// MarshalTrackTime encodes a track-time payload for beacon delivery, where
// the body must be prepared before the page tears down.
func MarshalTrackTime(p TrackTimePayload) ([]byte, error) {
	return json.Marshal(p)
}

// FormatDuration renders seconds as HH:MM:SS for the human-readable
// time-spend field.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
