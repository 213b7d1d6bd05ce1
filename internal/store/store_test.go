package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "collector.db"), nil)
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestRecordSession_AndCount verifies the session log.
func TestRecordSession_AndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := SessionRecord{
		ClientID:        "acme-lms",
		SessionID:       "s1",
		DeviceID:        "d1",
		Date:            "2026-08-31",
		StartTimeMs:     1000,
		EndTimeMs:       61000,
		DurationSeconds: 60,
		EndReason:       "visibility_hidden",
		Browser:         "Chrome",
		OS:              "Windows",
		DeviceType:      "desktop",
	}
	if err := s.RecordSession(ctx, rec); err != nil {
		t.Fatalf("RecordSession() returned unexpected error: %v", err)
	}
	if err := s.RecordSession(ctx, rec); err != nil {
		t.Fatalf("second RecordSession() returned unexpected error: %v", err)
	}

	n, err := s.SessionCount(ctx, "acme-lms")
	if err != nil {
		t.Fatalf("SessionCount() returned unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("SessionCount() = %d, want 2", n)
	}

	var deviceID string
	if err := s.db.QueryRowContext(ctx,
		`SELECT device_id FROM sessions WHERE session_id = 's1' LIMIT 1`,
	).Scan(&deviceID); err != nil {
		t.Fatalf("reading back device_id: %v", err)
	}
	if deviceID != "d1" {
		t.Errorf("device_id = %q, want %q", deviceID, "d1")
	}

	if n, _ := s.SessionCount(ctx, "other"); n != 0 {
		t.Errorf("SessionCount(other) = %d, want 0", n)
	}
}

// TestAddDailyTime_Upserts verifies repeated adds accumulate into one row.
func TestAddDailyTime_Upserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddDailyTime(ctx, "acme-lms", "2026-08-31", 60); err != nil {
		t.Fatalf("AddDailyTime() returned unexpected error: %v", err)
	}
	if err := s.AddDailyTime(ctx, "acme-lms", "2026-08-31", 30); err != nil {
		t.Fatalf("AddDailyTime() returned unexpected error: %v", err)
	}
	if err := s.AddDailyTime(ctx, "acme-lms", "2026-09-01", 10); err != nil {
		t.Fatalf("AddDailyTime() returned unexpected error: %v", err)
	}

	history, err := s.DailyHistory(ctx, "acme-lms", 0)
	if err != nil {
		t.Fatalf("DailyHistory() returned unexpected error: %v", err)
	}
	if history["2026-08-31"] != 90 {
		t.Errorf("history[2026-08-31] = %d, want 90", history["2026-08-31"])
	}
	if history["2026-09-01"] != 10 {
		t.Errorf("history[2026-09-01] = %d, want 10", history["2026-09-01"])
	}
}

// TestDailyHistory_PerClientAndLimited verifies isolation between clients
// and the limit clause.
func TestDailyHistory_PerClientAndLimited(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.AddDailyTime(ctx, "a", "2026-08-29", 1)
	s.AddDailyTime(ctx, "a", "2026-08-30", 2)
	s.AddDailyTime(ctx, "a", "2026-08-31", 3)
	s.AddDailyTime(ctx, "b", "2026-08-31", 99)

	history, err := s.DailyHistory(ctx, "a", 2)
	if err != nil {
		t.Fatalf("DailyHistory() returned unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("limited history has %d entries, want 2", len(history))
	}
	if _, ok := history["2026-08-29"]; ok {
		t.Error("limit should drop the oldest day")
	}
	if history["2026-08-31"] != 3 {
		t.Errorf("history[2026-08-31] = %d, want 3 (client isolation)", history["2026-08-31"])
	}
}

// TestTotalsBefore_AndEvict verifies the archiver's read-then-evict cycle.
func TestTotalsBefore_AndEvict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.AddDailyTime(ctx, "a", "2026-07-01", 100)
	s.AddDailyTime(ctx, "a", "2026-08-31", 200)
	s.RecordSession(ctx, SessionRecord{ClientID: "a", SessionID: "old", Date: "2026-07-01", DurationSeconds: 100})
	s.RecordSession(ctx, SessionRecord{ClientID: "a", SessionID: "new", Date: "2026-08-31", DurationSeconds: 200})

	totals, err := s.TotalsBefore(ctx, "2026-08-01")
	if err != nil {
		t.Fatalf("TotalsBefore() returned unexpected error: %v", err)
	}
	if len(totals) != 1 || totals[0].Date != "2026-07-01" || totals[0].Seconds != 100 {
		t.Errorf("TotalsBefore() = %+v, want the single July row", totals)
	}

	if err := s.EvictBefore(ctx, "2026-08-01"); err != nil {
		t.Fatalf("EvictBefore() returned unexpected error: %v", err)
	}

	history, _ := s.DailyHistory(ctx, "a", 0)
	if _, ok := history["2026-07-01"]; ok {
		t.Error("evicted day should be gone from daily history")
	}
	if history["2026-08-31"] != 200 {
		t.Error("recent day should survive eviction")
	}

	n, _ := s.SessionCount(ctx, "a")
	if n != 1 {
		t.Errorf("SessionCount() after eviction = %d, want 1", n)
	}
}
