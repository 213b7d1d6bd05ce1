// Package transport sends activity reports to the collector over HTTP and
// provides the beacon-style fire-and-forget path used at page teardown.
package transport

import (
	"math"
	"math/rand"
	"time"
)

// RetryStrategy schedules retries after transient failures.
type RetryStrategy interface {
	// NextDelay returns the delay before retry number attempt (0-indexed).
	// Returns 0 when no more retries should be attempted.
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of retry attempts.
	MaxAttempts() int
}

// ExponentialBackoff implements RetryStrategy with exponential delays, a
// delay cap, and optional jitter.
type ExponentialBackoff struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay.
	MaxDelay time.Duration

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// Jitter is the proportion of randomness applied to the delay (0 to 1).
	Jitter float64
}

// NextDelay returns BaseDelay * 2^attempt capped at MaxDelay, or 0 when the
// attempt budget is spent.
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt >= e.MaxRetries {
		return 0
	}

	delay := float64(e.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}

	if e.Jitter > 0 {
		//nolint:gosec // math/rand is fine for jitter
		delay += delay * e.Jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// MaxAttempts returns the configured retry budget.
func (e *ExponentialBackoff) MaxAttempts() int {
	return e.MaxRetries
}

// CheckpointRetry is the retry schedule for periodic checkpoint sends:
// three attempts at 10s, 20s, 40s, then the cycle is abandoned and the next
// scheduled checkpoint starts fresh.
var CheckpointRetry = &ExponentialBackoff{
	BaseDelay:  10 * time.Second,
	MaxDelay:   40 * time.Second,
	MaxRetries: 3,
}

// NoRetry performs no retries. Close-session sends use it: a failed close
// notification goes to the offline queue instead of being re-attempted
// inline, to avoid amplifying duplicate sends.
var NoRetry RetryStrategy = &ExponentialBackoff{}
