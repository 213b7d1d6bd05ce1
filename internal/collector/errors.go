package collector

import "errors"

// Sentinel validation errors. They map to HTTP 400 responses.
var (
	ErrClientIDRequired  = errors.New("client id is required")
	ErrSessionIDRequired = errors.New("session_id is required")
	ErrDurationRequired  = errors.New("a duration field is required")
	ErrDurationNegative  = errors.New("duration must be non-negative")
	ErrDurationTooLarge  = errors.New("duration exceeds the 24h session cap")
	ErrBadDate           = errors.New("date must be formatted YYYY-MM-DD")
)
