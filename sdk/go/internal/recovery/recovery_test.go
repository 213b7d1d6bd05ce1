package recovery

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/edupulse/engage/sdk/go/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.Open(filepath.Join(dir, "engage.db"), nil)
	if err != nil {
		t.Fatalf("storage.Open() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestEmergencyBackup_WriteLoadClear covers the backup record lifecycle.
func TestEmergencyBackup_WriteLoadClear(t *testing.T) {
	store := openTestStore(t)

	if _, ok := LoadEmergency(store); ok {
		t.Fatal("LoadEmergency() on a fresh store should find nothing")
	}

	in := EmergencyBackup{
		SessionStartMs:         1000,
		SessionDurationSeconds: 90,
		TotalTimeBeforeSession: 3600,
		TimestampMs:            91000,
	}
	WriteEmergency(store, in)

	out, ok := LoadEmergency(store)
	if !ok {
		t.Fatal("LoadEmergency() should find the record that was just written")
	}
	if out != in {
		t.Errorf("LoadEmergency() = %+v, want %+v", out, in)
	}

	ClearEmergency(store)
	if _, ok := LoadEmergency(store); ok {
		t.Error("LoadEmergency() after ClearEmergency() should find nothing")
	}

	// Clearing again is a no-op.
	ClearEmergency(store)
}

// TestLedger_MarkIfNew_SuppressesSecondPath verifies the property that one
// session reported by two code paths sends at most once.
func TestLedger_MarkIfNew_SuppressesSecondPath(t *testing.T) {
	l := NewLedger(openTestStore(t), nil)

	if !l.MarkIfNew("1000-60") {
		t.Fatal("first MarkIfNew() should return true")
	}
	if l.MarkIfNew("1000-60") {
		t.Error("second MarkIfNew() for the same key should return false")
	}
	if !l.MarkIfNew("1000-61") {
		t.Error("MarkIfNew() for a different key should return true")
	}
}

// TestLedger_Contains verifies the read-only query.
func TestLedger_Contains(t *testing.T) {
	l := NewLedger(openTestStore(t), nil)

	if l.Contains("1000-60") {
		t.Error("Contains() on an empty ledger should return false")
	}

	l.MarkIfNew("1000-60")
	if !l.Contains("1000-60") {
		t.Error("Contains() should find a marked key")
	}
}

// TestLedger_EvictsOldestBeyondCapacity verifies the 100-entry bound: the
// oldest key falls out and may be marked again.
func TestLedger_EvictsOldestBeyondCapacity(t *testing.T) {
	l := NewLedger(openTestStore(t), nil)

	for i := 0; i < maxLedgerEntries+1; i++ {
		l.MarkIfNew(fmt.Sprintf("%d-60", i))
	}

	if l.Contains("0-60") {
		t.Error("oldest key should have been evicted")
	}
	if !l.Contains("1-60") {
		t.Error("second-oldest key should still be present")
	}
	if !l.Contains(fmt.Sprintf("%d-60", maxLedgerEntries)) {
		t.Error("newest key should be present")
	}
}

// TestLedger_SurvivesRestart verifies the ledger is durable: a new ledger
// over the same store still suppresses previously marked keys.
func TestLedger_SurvivesRestart(t *testing.T) {
	store := openTestStore(t)

	NewLedger(store, nil).MarkIfNew("1000-60")

	if NewLedger(store, nil).MarkIfNew("1000-60") {
		t.Error("MarkIfNew() after restart should still suppress the key")
	}
}
