package lifecycle

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler driven by virtual time, for deterministic
// tests of timer-driven behaviour. It doubles as the test clock: pass
// Now as the SDK's Clock and call Advance to move time forward.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []*manualTask
	nextID int
}

type manualTask struct {
	id       int
	due      time.Time
	interval time.Duration // 0 for one-shot
	fn       func()
	stopped  bool
}

// NewManualScheduler creates a ManualScheduler starting at the given time.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the current virtual time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Repeat implements Scheduler.
func (s *ManualScheduler) Repeat(interval time.Duration, fn func()) CancelFunc {
	return s.add(interval, interval, fn)
}

// After implements Scheduler.
func (s *ManualScheduler) After(delay time.Duration, fn func()) CancelFunc {
	return s.add(delay, 0, fn)
}

func (s *ManualScheduler) add(delay, interval time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTask{
		id:       s.nextID,
		due:      s.now.Add(delay),
		interval: interval,
		fn:       fn,
	}
	s.nextID++
	s.tasks = append(s.tasks, t)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.stopped = true
	}
}

// Advance moves virtual time forward by d, firing every due task in deadline
// order. Repeating tasks re-arm and may fire multiple times within one
// Advance. Task functions run without the scheduler lock held, so they may
// schedule or cancel tasks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()

		var next *manualTask
		for _, t := range s.tasks {
			if t.stopped || t.due.After(target) {
				continue
			}
			if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.id < next.id) {
				next = t
			}
		}

		if next == nil {
			s.now = target
			s.compact()
			s.mu.Unlock()
			return
		}

		if next.due.After(s.now) {
			s.now = next.due
		}
		fn := next.fn
		if next.interval > 0 {
			next.due = next.due.Add(next.interval)
		} else {
			next.stopped = true
		}
		s.mu.Unlock()

		fn()
	}
}

// compact drops stopped tasks. Caller holds the lock.
func (s *ManualScheduler) compact() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.Slice(s.tasks, func(i, j int) bool { return s.tasks[i].id < s.tasks[j].id })
}
