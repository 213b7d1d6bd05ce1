// Package identity produces the fingerprint attached to every reported
// activity interval: a stable per-installation device ID, a per-logical-
// session ID, and coarse device metadata derived from the user-agent string.
package identity

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/edupulse/engage/sdk/go/internal/storage"
	"github.com/edupulse/engage/sdk/go/lifecycle"
)

// DeviceInfo is coarse device metadata, recomputed on each read and never
// persisted.
type DeviceInfo struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

// Fingerprint identifies the origin of a reported activity interval.
type Fingerprint struct {
	SessionID  string     `json:"session_id"`
	DeviceID   string     `json:"device_id"`
	DeviceInfo DeviceInfo `json:"device_info"`
}

// Provider hands out device and session identifiers. IDs are persisted to
// the durable store and cached in memory; when storage is unavailable the
// provider falls back to an ephemeral timestamp-plus-random ID rather than
// failing.
//
// Provider is safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	store     *storage.Store
	clock     lifecycle.Clock
	logger    *slog.Logger
	deviceID  string
	sessionID string
}

// NewProvider creates a Provider. store may be nil (ephemeral IDs only).
func NewProvider(store *storage.Store, clock lifecycle.Clock, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  store,
		clock:  clock,
		logger: logger.With("component", "identity"),
	}
}

// DeviceID returns the persisted device ID, creating and persisting one on
// first call. The ID never changes for a given storage profile.
func (p *Provider) DeviceID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deviceID != "" {
		return p.deviceID
	}

	if p.store != nil {
		if id, ok := p.store.GetString(storage.KeyDeviceID); ok && id != "" {
			p.deviceID = id
			return p.deviceID
		}
	}

	p.deviceID = p.newID()
	if p.store != nil {
		p.store.SetString(storage.KeyDeviceID, p.deviceID)
	}
	return p.deviceID
}

// SessionID returns the current logical-session ID, creating one if absent.
// It does not rotate: repeated calls within one logical session return the
// same value.
func (p *Provider) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessionID != "" {
		return p.sessionID
	}

	if p.store != nil {
		if id, ok := p.store.GetString(storage.KeySessionID); ok && id != "" {
			p.sessionID = id
			return p.sessionID
		}
	}

	return p.rotateLocked()
}

// NewSessionID unconditionally creates, persists, and returns a fresh
// session ID, replacing any prior one. Called at first-ever start, after a
// daily reset, and after a long absence detected at restore time.
func (p *Provider) NewSessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotateLocked()
}

// rotateLocked generates and persists a new session ID. Caller holds mu.
func (p *Provider) rotateLocked() string {
	p.sessionID = p.newID()
	if p.store != nil {
		p.store.SetString(storage.KeySessionID, p.sessionID)
	}
	return p.sessionID
}

// Fingerprint composes the full origin fingerprint for the given user-agent.
func (p *Provider) Fingerprint(userAgent string) Fingerprint {
	return Fingerprint{
		SessionID:  p.SessionID(),
		DeviceID:   p.DeviceID(),
		DeviceInfo: ParseUserAgent(userAgent),
	}
}

// newID returns a UUID, or an ephemeral timestamp-plus-random ID if UUID
// generation fails. This function never panics.
func (p *Provider) newID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		p.logger.Warn("uuid generation failed, using ephemeral id", "error", err)
		//nolint:gosec // math/rand is fine for a fallback identifier
		return fmt.Sprintf("ephemeral-%d-%06d", p.clock().UnixMilli(), rand.Intn(1_000_000))
	}
	return id.String()
}
