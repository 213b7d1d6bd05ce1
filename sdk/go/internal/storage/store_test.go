package storage

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	store, err := Open(filepath.Join(dir, "engage.db"), nil)
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestOpen_EmptyPath_ReturnsError verifies that an empty path is rejected.
func TestOpen_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Error("Open(\"\") should return an error")
	}
}

// TestGetString_MissingKey_ReturnsAbsent verifies the absent read path.
func TestGetString_MissingKey_ReturnsAbsent(t *testing.T) {
	store := openTestStore(t)

	if _, ok := store.GetString("nope"); ok {
		t.Error("GetString() for a missing key should report absent")
	}
}

// TestSetString_RoundTrip verifies basic write-then-read.
func TestSetString_RoundTrip(t *testing.T) {
	store := openTestStore(t)

	store.SetString(KeyDeviceID, "device-123")

	got, ok := store.GetString(KeyDeviceID)
	if !ok {
		t.Fatal("GetString() should find a key that was just written")
	}
	if got != "device-123" {
		t.Errorf("GetString() = %q, want %q", got, "device-123")
	}
}

// TestSetString_Overwrite verifies that a second write replaces the first.
func TestSetString_Overwrite(t *testing.T) {
	store := openTestStore(t)

	store.SetString("k", "first")
	store.SetString("k", "second")

	got, _ := store.GetString("k")
	if got != "second" {
		t.Errorf("GetString() after overwrite = %q, want %q", got, "second")
	}
}

// TestDelete_RemovesKey verifies delete, including deleting a missing key.
func TestDelete_RemovesKey(t *testing.T) {
	store := openTestStore(t)

	store.SetString("k", "v")
	store.Delete("k")

	if _, ok := store.GetString("k"); ok {
		t.Error("GetString() after Delete() should report absent")
	}

	// Deleting again must be a no-op, not an error.
	store.Delete("k")
}

// TestLoadJSON_RoundTrip verifies typed persistence of a backup snapshot.
func TestLoadJSON_RoundTrip(t *testing.T) {
	store := openTestStore(t)

	in := SessionBackup{
		TotalTimeSpent: 3600,
		ActivityHistory: []Session{
			{StartTimeMs: 1000, EndTimeMs: 61000, DurationSeconds: 60},
		},
		IsActive:              true,
		CurrentSessionStartMs: 61000,
		LastBackupMs:          70000,
	}
	store.SaveJSON(KeySessionBackup, in)

	var out SessionBackup
	if !store.LoadJSON(KeySessionBackup, &out) {
		t.Fatal("LoadJSON() should find the snapshot that was just saved")
	}
	if out.TotalTimeSpent != in.TotalTimeSpent {
		t.Errorf("TotalTimeSpent = %d, want %d", out.TotalTimeSpent, in.TotalTimeSpent)
	}
	if len(out.ActivityHistory) != 1 || out.ActivityHistory[0].DurationSeconds != 60 {
		t.Errorf("ActivityHistory = %+v, want one 60s session", out.ActivityHistory)
	}
	if !out.IsActive || out.CurrentSessionStartMs != 61000 {
		t.Errorf("session fields = (%v, %d), want (true, 61000)", out.IsActive, out.CurrentSessionStartMs)
	}
}

// TestLoadJSON_CorruptValue_TreatedAsAbsent verifies that unparseable stored
// data reads like missing data instead of failing.
func TestLoadJSON_CorruptValue_TreatedAsAbsent(t *testing.T) {
	store := openTestStore(t)

	store.SetString(KeySessionBackup, "{not json")

	var out SessionBackup
	if store.LoadJSON(KeySessionBackup, &out) {
		t.Error("LoadJSON() of corrupt data should report absent")
	}
}

// TestOpen_Reopen_KeepsData verifies migrations are idempotent and data
// survives a close/reopen cycle.
func TestOpen_Reopen_KeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engage.db")

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	store.SetString("k", "v")
	if err := store.Close(); err != nil {
		t.Fatalf("Close() returned unexpected error: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen returned unexpected error: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.GetString("k")
	if !ok || got != "v" {
		t.Errorf("GetString() after reopen = (%q, %v), want (%q, true)", got, ok, "v")
	}
}
