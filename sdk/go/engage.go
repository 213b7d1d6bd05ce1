// Package engage is the client SDK for user engagement tracking: it measures
// how long a user actively spends in the embedding application, survives
// reloads and crashes, and reports closed sessions to the collector.
//
// Usage:
//
//	client, err := engage.New(engage.Config{
//		Endpoint:    "https://api.example.com",
//		ClientID:    "acme-lms",
//		StoragePath: "engage.db",
//		Signals:     signals,
//	})
//	if err != nil { ... }
//	defer client.Close()
//	client.Mount()
package engage

import (
	"fmt"
	"sync"

	"github.com/edupulse/engage/sdk/go/internal/daily"
	"github.com/edupulse/engage/sdk/go/internal/identity"
	"github.com/edupulse/engage/sdk/go/internal/recovery"
	"github.com/edupulse/engage/sdk/go/internal/storage"
	"github.com/edupulse/engage/sdk/go/internal/syncer"
	"github.com/edupulse/engage/sdk/go/internal/tracker"
	"github.com/edupulse/engage/sdk/go/internal/transport"
)

// Snapshot is the externally visible tracking state.
type Snapshot struct {
	// IsActive reports whether a session is currently open.
	IsActive bool

	// TotalTimeSpent is today's accumulated active seconds, excluding the
	// open session.
	TotalTimeSpent int64

	// CurrentSessionStartMs is the open session's start, or 0 when idle.
	CurrentSessionStartMs int64

	// Sessions are today's closed sessions in order.
	Sessions []Session

	// History maps past dates ("2006-01-02") to archived daily totals.
	History map[string]int64

	// DeviceID is the stable per-install identifier.
	DeviceID string

	// SessionID is the current rotating session identifier.
	SessionID string
}

// Session is one closed activity interval.
type Session struct {
	StartTimeMs     int64
	EndTimeMs       int64
	DurationSeconds int64
}

// Client owns the tracking machinery for one application instance.
type Client struct {
	config  Config
	store   *storage.Store
	ident   *identity.Provider
	dailyT  *daily.Tracker
	tracker *tracker.Tracker

	unsubscribe func()

	mu        sync.Mutex
	mounted   bool
	closeOnce sync.Once
}

// New creates a Client. Nothing runs until Mount.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	store, err := storage.Open(cfg.StoragePath, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("engage: open storage: %w", err)
	}

	ident := identity.NewProvider(store, cfg.Clock, cfg.Logger)
	dailyT := daily.NewTracker(store, cfg.Clock, cfg.Logger)
	dedup := syncer.NewDeduplicator(store, cfg.Clock, cfg.Logger)
	guard := syncer.NewGuard(cfg.Logger)
	ledger := recovery.NewLedger(store, cfg.Logger)
	client := transport.NewClient(cfg.Endpoint, cfg.ClientID, cfg.Timeout, cfg.Logger)
	beacon := transport.NewHTTPBeacon(cfg.Endpoint, 0, cfg.Logger)
	queue := transport.NewOfflineQueue(store, cfg.Logger)

	track := tracker.New(tracker.Deps{
		Store:     store,
		Identity:  ident,
		Daily:     dailyT,
		Dedup:     dedup,
		Guard:     guard,
		Ledger:    ledger,
		Transport: client,
		Beacon:    beacon,
		Queue:     queue,
		Scheduler: cfg.Scheduler,
		Clock:     cfg.Clock,
		Logger:    cfg.Logger,
	}, tracker.Options{
		UserAgent:          cfg.UserAgent,
		AccountID:          cfg.AccountID,
		WasReload:          cfg.WasReload,
		CheckpointInterval: cfg.CheckpointInterval,
		BackupInterval:     cfg.BackupInterval,
		AbsenceThreshold:   cfg.AbsenceThreshold,
	})

	return &Client{
		config:  cfg,
		store:   store,
		ident:   ident,
		dailyT:  dailyT,
		tracker: track,
	}, nil
}

// Mount restores persisted state, subscribes to lifecycle signals, starts
// the timers, and opens the first session. Calling Mount on a mounted
// client is a no-op.
func (c *Client) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mounted {
		return
	}
	c.mounted = true

	c.tracker.Start()
	if c.config.Signals != nil {
		c.unsubscribe = c.config.Signals.Subscribe(c.tracker.HandleSignal)
	}
}

// Unmount ends the open session with the unmount reason, stops timers, and
// detaches from the signal source. The client can be mounted again.
func (c *Client) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return
	}
	c.mounted = false

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.tracker.Stop()
}

// Snapshot returns the current tracking state for display.
func (c *Client) Snapshot() Snapshot {
	st := c.tracker.Snapshot()

	sessions := make([]Session, len(st.History))
	for i, s := range st.History {
		sessions[i] = Session{
			StartTimeMs:     s.StartTimeMs,
			EndTimeMs:       s.EndTimeMs,
			DurationSeconds: s.DurationSeconds,
		}
	}

	return Snapshot{
		IsActive:              st.IsActive,
		TotalTimeSpent:        st.TotalTimeSpent,
		CurrentSessionStartMs: st.CurrentSessionStartMs,
		Sessions:              sessions,
		History:               c.dailyT.History(),
		DeviceID:              c.ident.DeviceID(),
		SessionID:             c.ident.SessionID(),
	}
}

// Close unmounts if needed and releases the storage handle. Safe to call
// more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.Unmount()
		err = c.store.Close()
	})
	return err
}
