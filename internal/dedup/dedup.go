package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config holds the dedup configuration.
//
// Environment variable overrides:
//   - DEDUP_WINDOW:   sliding window duration (default: 90s, three SDK
//     dedup windows)
//   - DEDUP_CAPACITY: expected reports per window (default: 100000)
//   - DEDUP_FP_RATE:  bloom filter false positive rate (default: 0.0001)
type Config struct {
	Window   time.Duration `env:"DEDUP_WINDOW"   envDefault:"90s"`
	Capacity uint          `env:"DEDUP_CAPACITY" envDefault:"100000"`
	FPRate   float64       `env:"DEDUP_FP_RATE"  envDefault:"0.0001"`
}

// Service detects replayed activity reports within a sliding time window.
// A background goroutine rotates the underlying bloom filters every
// window/2.
type Service struct {
	filter *filterSet
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a dedup Service. Start must be called to begin rotation.
func New(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		filter: newFilterSet(cfg.Window, cfg.Capacity, cfg.FPRate),
		logger: logger.With("component", "dedup"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SessionKey builds the dedup key for a per-session report. The pair
// (session, duration) identifies one logical "session ended" fact: a
// checkpoint for the same session reports a different duration and passes.
func SessionKey(sessionID string, durationSeconds int64) string {
	return fmt.Sprintf("%s:%d", sessionID, durationSeconds)
}

// IsDuplicate reports whether key was already seen within the window,
// recording it if not. Empty keys are never duplicates: reports without a
// session ID pass through.
func (s *Service) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}

	if s.filter.testAndAdd(key) {
		s.logger.Debug("duplicate report dropped", "key", key)
		return true
	}
	return false
}

// Start launches the rotation goroutine. It stops when ctx is cancelled or
// Stop is called.
func (s *Service) Start(ctx context.Context) {
	rotateInterval := s.filter.window / 2
	s.logger.Info("dedup started", "window", s.filter.window, "rotate_interval", rotateInterval)

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(rotateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.filter.rotate()
				s.logger.Debug("bloom filter rotated")
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop signals the rotation goroutine to stop and waits for it to finish.
func (s *Service) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
