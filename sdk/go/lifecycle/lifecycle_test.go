package lifecycle

import (
	"testing"
	"time"
)

// TestDispatcher_SubscribeEmitUnsubscribe covers the signal fan-out
// lifecycle.
func TestDispatcher_SubscribeEmitUnsubscribe(t *testing.T) {
	d := NewDispatcher()

	var got []Kind
	unsubscribe := d.Subscribe(func(s Signal) { got = append(got, s.Kind) })

	d.Emit(Signal{Kind: VisibilityHidden})
	d.Emit(Signal{Kind: VisibilityVisible})

	if len(got) != 2 || got[0] != VisibilityHidden || got[1] != VisibilityVisible {
		t.Errorf("handler received %v, want [visibility_hidden visibility_visible]", got)
	}

	unsubscribe()
	d.Emit(Signal{Kind: PageHide})
	if len(got) != 2 {
		t.Error("handler received a signal after unsubscribe")
	}

	// Unsubscribing twice is safe.
	unsubscribe()
}

// TestDispatcher_DeliversInSubscriptionOrder verifies ordering across
// multiple subscribers.
func TestDispatcher_DeliversInSubscriptionOrder(t *testing.T) {
	d := NewDispatcher()

	var order []int
	d.Subscribe(func(Signal) { order = append(order, 1) })
	d.Subscribe(func(Signal) { order = append(order, 2) })

	d.Emit(Signal{Kind: FocusGained})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("delivery order = %v, want [1 2]", order)
	}
}

// TestManualScheduler_RepeatFiresPerInterval verifies repeating tasks fire
// once per elapsed interval, including multiple times in one Advance.
func TestManualScheduler_RepeatFiresPerInterval(t *testing.T) {
	s := NewManualScheduler(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	var fires int
	cancel := s.Repeat(time.Minute, func() { fires++ })

	s.Advance(30 * time.Second)
	if fires != 0 {
		t.Errorf("fires after 30s = %d, want 0", fires)
	}

	s.Advance(30 * time.Second)
	if fires != 1 {
		t.Errorf("fires after 1m = %d, want 1", fires)
	}

	s.Advance(3 * time.Minute)
	if fires != 4 {
		t.Errorf("fires after 4m = %d, want 4", fires)
	}

	cancel()
	s.Advance(time.Hour)
	if fires != 4 {
		t.Errorf("fires after cancel = %d, want 4", fires)
	}
}

// TestManualScheduler_AfterFiresOnce verifies one-shot scheduling.
func TestManualScheduler_AfterFiresOnce(t *testing.T) {
	s := NewManualScheduler(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	var fires int
	s.After(10*time.Second, func() { fires++ })

	s.Advance(time.Minute)
	s.Advance(time.Minute)
	if fires != 1 {
		t.Errorf("fires = %d, want 1", fires)
	}
}

// TestManualScheduler_AfterCancelled verifies a cancelled one-shot never
// fires.
func TestManualScheduler_AfterCancelled(t *testing.T) {
	s := NewManualScheduler(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	var fires int
	cancel := s.After(10*time.Second, func() { fires++ })
	cancel()

	s.Advance(time.Minute)
	if fires != 0 {
		t.Errorf("fires = %d, want 0", fires)
	}
}

// TestManualScheduler_NowAdvancesWithTasks verifies the virtual clock reads
// the task's due time while it runs.
func TestManualScheduler_NowAdvancesWithTasks(t *testing.T) {
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s := NewManualScheduler(start)

	var at time.Time
	s.After(15*time.Second, func() { at = s.Now() })

	s.Advance(time.Minute)

	if !at.Equal(start.Add(15 * time.Second)) {
		t.Errorf("Now() inside task = %v, want %v", at, start.Add(15*time.Second))
	}
	if !s.Now().Equal(start.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v, want %v", s.Now(), start.Add(time.Minute))
	}
}

// TestWallScheduler_Cancel verifies wall-clock cancellation does not panic
// and is idempotent.
func TestWallScheduler_Cancel(t *testing.T) {
	s := NewWallScheduler()

	cancel := s.Repeat(time.Hour, func() {})
	cancel()
	cancel()

	cancelAfter := s.After(time.Hour, func() {})
	cancelAfter()
	cancelAfter()
}
