package collector

// deviceInfo mirrors the SDK's device fingerprint block.
type deviceInfo struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

// activityLogRequest is the body of the per-session report. The hyphenated
// field names are part of the wire contract with the SDK.
type activityLogRequest struct {
	Date             string     `json:"date"`
	TimeSpendSeconds *int64     `json:"time-spend-seconds"`
	TimeSpend        string     `json:"time-spend"`
	SessionID        string     `json:"session_id"`
	DeviceID         string     `json:"device_id"`
	DeviceInfo       deviceInfo `json:"device_info"`
	AccountID        string     `json:"account_id"`
	TimestampMs      int64      `json:"timestamp"`

	SessionStartTimeMs     int64  `json:"session_start_time"`
	SessionEndTimeMs       int64  `json:"session_end_time"`
	SessionDurationSeconds *int64 `json:"session_duration_seconds"`
	EventType              string `json:"event_type"`
	SessionEndReason       string `json:"session_end_reason"`
}

// duration prefers the per-session field over the legacy hyphenated one.
func (r *activityLogRequest) duration() (int64, bool) {
	if r.SessionDurationSeconds != nil {
		return *r.SessionDurationSeconds, true
	}
	if r.TimeSpendSeconds != nil {
		return *r.TimeSpendSeconds, true
	}
	return 0, false
}

// trackTimeRequest is the legacy/checkpoint/beacon body. Older SDK builds
// sent `time_spent_seconds`, current ones send `time-spend-seconds`; both
// spellings are accepted.
type trackTimeRequest struct {
	Date             string      `json:"date"`
	TimeSpendSeconds *int64      `json:"time-spend-seconds"`
	TimeSpentSeconds *int64      `json:"time_spent_seconds"`
	SessionID        string      `json:"session_id"`
	DeviceInfo       *deviceInfo `json:"device_info"`
	DeviceType       string      `json:"device_type"`
	SessionOnly      bool        `json:"session_only"`
}

// seconds returns the reported duration under either spelling.
func (r *trackTimeRequest) seconds() (int64, bool) {
	if r.TimeSpendSeconds != nil {
		return *r.TimeSpendSeconds, true
	}
	if r.TimeSpentSeconds != nil {
		return *r.TimeSpentSeconds, true
	}
	return 0, false
}

// ingestResponse is the body returned for accepted reports.
type ingestResponse struct {
	Status string `json:"status"` // "accepted" or "duplicate"
}

// errorResponse is the body returned for rejected requests.
type errorResponse struct {
	Error string `json:"error"`
}

// historyResponse is the body of the history endpoint.
type historyResponse struct {
	ClientID string           `json:"client_id"`
	History  map[string]int64 `json:"history"`
}
