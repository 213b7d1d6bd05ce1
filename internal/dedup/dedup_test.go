package dedup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{Window: 90 * time.Second, Capacity: 10000, FPRate: 0.0001}
}

// TestIsDuplicate_FirstOccurrence verifies a fresh key passes through.
func TestIsDuplicate_FirstOccurrence(t *testing.T) {
	s := New(testConfig(), nil)

	if s.IsDuplicate(SessionKey("s1", 60)) {
		t.Error("IsDuplicate() = true for first occurrence, want false")
	}
}

// TestIsDuplicate_Replay verifies the same report is dropped on replay.
func TestIsDuplicate_Replay(t *testing.T) {
	s := New(testConfig(), nil)

	key := SessionKey("s1", 60)
	if s.IsDuplicate(key) {
		t.Fatal("first occurrence should not be a duplicate")
	}
	if !s.IsDuplicate(key) {
		t.Error("replayed report should be a duplicate")
	}
}

// TestIsDuplicate_DifferentDuration verifies a checkpoint for the same
// session with a different duration passes.
func TestIsDuplicate_DifferentDuration(t *testing.T) {
	s := New(testConfig(), nil)

	s.IsDuplicate(SessionKey("s1", 60))
	if s.IsDuplicate(SessionKey("s1", 120)) {
		t.Error("same session with a different duration should not be a duplicate")
	}
}

// TestIsDuplicate_EmptyKey verifies reports without a session ID never
// deduplicate.
func TestIsDuplicate_EmptyKey(t *testing.T) {
	s := New(testConfig(), nil)

	if s.IsDuplicate("") {
		t.Error("IsDuplicate(\"\") = true, want false")
	}
	if s.IsDuplicate("") {
		t.Error("IsDuplicate(\"\") = true on second call, want false")
	}
}

// TestRotate_KeySurvivesOneRotation verifies the sliding overlap: a key in
// the previous filter is still a duplicate after one rotation, gone after
// two.
func TestRotate_KeySurvivesOneRotation(t *testing.T) {
	s := New(testConfig(), nil)

	key := SessionKey("s1", 60)
	s.IsDuplicate(key)

	s.filter.rotate()
	if !s.IsDuplicate(key) {
		t.Error("key should still be a duplicate after one rotation")
	}

	// The check above re-added the key to the fresh current filter, so two
	// more rotations are needed to age it out fully.
	s.filter.rotate()
	s.filter.rotate()
	if s.IsDuplicate(key) {
		t.Error("key should have aged out after the window passed")
	}
}

// TestIsDuplicate_Concurrent verifies exactly one of many concurrent
// submitters of the same key passes.
func TestIsDuplicate_Concurrent(t *testing.T) {
	s := New(testConfig(), nil)

	const goroutines = 32
	var passed int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	key := SessionKey("contended", 60)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.IsDuplicate(key) {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if passed != 1 {
		t.Errorf("%d goroutines passed the dedup check, want 1", passed)
	}
}

// TestStartStop verifies the rotation goroutine shuts down cleanly.
func TestStartStop(t *testing.T) {
	s := New(testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Stop()
}

// TestSessionKey_Format pins the key layout shared with operational
// tooling.
func TestSessionKey_Format(t *testing.T) {
	if got := SessionKey("abc", 42); got != "abc:42" {
		t.Errorf("SessionKey() = %q, want %q", got, "abc:42")
	}
	if got := SessionKey("", 0); got != fmt.Sprintf("%s:%d", "", 0) {
		t.Errorf("SessionKey() = %q, want %q", got, ":0")
	}
}
