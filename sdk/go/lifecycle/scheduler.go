package lifecycle

import (
	"sync"
	"time"
)

// Clock returns the current time. The SDK takes one as a dependency so tests
// can drive virtual time instead of waiting on real timers.
type Clock func() time.Time

// CancelFunc stops a scheduled task. Safe to call more than once.
type CancelFunc func()

// Scheduler schedules repeating and one-shot work. The SDK depends only on
// this interface; the production implementation is WallScheduler.
type Scheduler interface {
	// Repeat runs fn every interval until the returned CancelFunc is called.
	Repeat(interval time.Duration, fn func()) CancelFunc

	// After runs fn once after delay unless cancelled first.
	After(delay time.Duration, fn func()) CancelFunc
}

// WallScheduler implements Scheduler over real time.Ticker/time.Timer.
type WallScheduler struct{}

// NewWallScheduler returns a Scheduler backed by wall-clock timers.
func NewWallScheduler() *WallScheduler {
	return &WallScheduler{}
}

// Repeat implements Scheduler.
func (s *WallScheduler) Repeat(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	stopCh := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stopCh:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopCh)
		})
	}
}

// After implements Scheduler.
func (s *WallScheduler) After(delay time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(delay, fn)
	var once sync.Once
	return func() {
		once.Do(func() { timer.Stop() })
	}
}
