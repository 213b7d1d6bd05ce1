package syncer

import (
	"log/slog"
	"sync"
)

// Guard serializes the side-effecting parts of the tracking core. It is an
// owned state object rather than package-level variables so the core stays
// testable and free of hidden process-wide state.
//
// Two independent mechanisms:
//
//   - A per-session lock keyed by the session-start timestamp. At most one
//     "end session" flow runs per open session; a second entrant abandons
//     rather than retries.
//   - A global single-flight gate for outbound requests. A caller arriving
//     while a request is in flight joins it (waits for the same outcome); a
//     caller arriving while that request is settling is skipped entirely.
type Guard struct {
	mu     sync.Mutex
	logger *slog.Logger

	lockedStart int64
	locked      bool

	inflight *inflightCall
}

// inflightCall is one in-progress Do invocation.
type inflightCall struct {
	done     chan struct{}
	settling bool
	err      error
}

// NewGuard creates a Guard.
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{logger: logger.With("component", "guard")}
}

// LockSession atomically acquires the end-session lock for the session that
// started at startMs. It returns false only when the flow for that same
// session is already running; the caller must abandon, not retry. A lock
// still held by an older session's in-flight flow is overwritten (a newer
// session must not wait on an old notification); the old flow's late unlock
// is then ignored by UnlockSession's match check.
func (g *Guard) LockSession(startMs int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked && g.lockedStart == startMs {
		g.logger.Debug("session already being processed, abandoning", "session_start", startMs)
		return false
	}

	g.locked = true
	g.lockedStart = startMs
	return true
}

// UnlockSession releases the lock iff it is held for startMs. A late unlock
// from a stale flow must not clear a newer session's lock.
func (g *Guard) UnlockSession(startMs int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.locked || g.lockedStart != startMs {
		return
	}
	g.locked = false
	g.lockedStart = 0
}

// IsSessionBeingProcessed reports whether the end-session flow for the
// session that started at startMs currently holds the lock.
func (g *Guard) IsSessionBeingProcessed(startMs int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked && g.lockedStart == startMs
}

// Do runs fn under the global single-flight gate.
//
// If no call is in flight, fn runs and its error is returned. If a call is
// in flight, the caller waits for that call and returns its error without
// issuing a second attempt. If the in-flight call is already settling
// (finished executing, not yet cleared), the invocation is skipped entirely
// and Do returns nil.
func (g *Guard) Do(label string, fn func() error) error {
	g.mu.Lock()
	if c := g.inflight; c != nil {
		if c.settling {
			g.mu.Unlock()
			g.logger.Debug("in-flight call settling, skipping", "caller", label)
			return nil
		}
		g.mu.Unlock()
		g.logger.Debug("joining in-flight call", "caller", label)
		<-c.done
		return c.err
	}

	c := &inflightCall{done: make(chan struct{})}
	g.inflight = c
	g.mu.Unlock()

	c.err = fn()

	// Settling window: the outcome is known but the gate is not yet clear.
	// Arrivals in this window are skipped, not joined.
	g.mu.Lock()
	c.settling = true
	g.mu.Unlock()

	close(c.done)

	g.mu.Lock()
	if g.inflight == c {
		g.inflight = nil
	}
	g.mu.Unlock()

	return c.err
}
