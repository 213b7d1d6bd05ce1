package engage

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/edupulse/engage/sdk/go/lifecycle"
)

// Default configuration values.
const (
	DefaultTimeout            = 10 * time.Second
	DefaultCheckpointInterval = 2 * time.Minute
	DefaultBackupInterval     = 10 * time.Second
	DefaultAbsenceThreshold   = 30 * time.Minute
)

// Config holds the SDK configuration.
type Config struct {
	// Endpoint is the collector base URL (e.g. "https://api.example.com").
	// Empty disables network reporting; tracking still runs locally.
	Endpoint string

	// ClientID identifies the embedding application to the collector
	// (required when Endpoint is set).
	ClientID string

	// StoragePath is the path of the local state database (required).
	StoragePath string

	// Signals delivers lifecycle events (visibility, focus, unload). Nil
	// means the tracker only reacts to timers and explicit calls.
	Signals lifecycle.SignalSource

	// Scheduler drives the periodic timers. Nil uses wall-clock timers.
	Scheduler lifecycle.Scheduler

	// Clock supplies the current time. Nil uses time.Now.
	Clock lifecycle.Clock

	// UserAgent is the host environment's user-agent string, used for the
	// device fingerprint.
	UserAgent string

	// AccountID is the logged-in account identifier, if any.
	AccountID string

	// WasReload indicates this launch was a page reload. Only reloads fold
	// the emergency backup from the previous page back into state.
	WasReload bool

	// Timeout is the HTTP request timeout (default: 10s).
	Timeout time.Duration

	// CheckpointInterval is the rolling checkpoint period (default: 2m).
	CheckpointInterval time.Duration

	// BackupInterval is the local snapshot period (default: 10s).
	BackupInterval time.Duration

	// AbsenceThreshold is how long the app may be gone before the next
	// launch gets a fresh session ID (default: 30m).
	AbsenceThreshold time.Duration

	// Logger receives structured logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// validate checks that required fields are set and values are valid.
func (c *Config) validate() error {
	if c.StoragePath == "" {
		return errors.New("engage: StoragePath is required")
	}
	if c.Endpoint != "" {
		if _, err := url.Parse(c.Endpoint); err != nil {
			return errors.New("engage: Endpoint must be a valid URL")
		}
		if c.ClientID == "" {
			return errors.New("engage: ClientID is required when Endpoint is set")
		}
	}
	if c.Timeout < 0 {
		return errors.New("engage: Timeout must be non-negative")
	}
	if c.CheckpointInterval < 0 {
		return errors.New("engage: CheckpointInterval must be non-negative")
	}
	if c.BackupInterval < 0 {
		return errors.New("engage: BackupInterval must be non-negative")
	}
	if c.AbsenceThreshold < 0 {
		return errors.New("engage: AbsenceThreshold must be non-negative")
	}
	return nil
}

// withDefaults returns a copy of the config with default values applied.
func (c Config) withDefaults() Config {
	cfg := c

	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.BackupInterval == 0 {
		cfg.BackupInterval = DefaultBackupInterval
	}
	if cfg.AbsenceThreshold == 0 {
		cfg.AbsenceThreshold = DefaultAbsenceThreshold
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = lifecycle.NewWallScheduler()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return cfg
}
