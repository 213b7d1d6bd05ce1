package identity

import (
	"path/filepath"
	"testing"
	"time"

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

func testClock() time.Time {
	return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
}

// TestDeviceID_StableAcrossProviders verifies the device ID survives a
// provider restart on the same storage profile.
func TestDeviceID_StableAcrossProviders(t *testing.T) {
	store := openTestStore(t)

	first := NewProvider(store, testClock, nil).DeviceID()
	if first == "" {
		t.Fatal("DeviceID() returned empty string")
	}

	second := NewProvider(store, testClock, nil).DeviceID()
	if second != first {
		t.Errorf("DeviceID() after restart = %q, want %q", second, first)
	}
}

// TestDeviceID_Idempotent verifies repeated reads return the same value.
func TestDeviceID_Idempotent(t *testing.T) {
	p := NewProvider(openTestStore(t), testClock, nil)

	if a, b := p.DeviceID(), p.DeviceID(); a != b {
		t.Errorf("DeviceID() not idempotent: %q then %q", a, b)
	}
}

// TestSessionID_DoesNotRotate verifies SessionID is read-or-create, never
// rotate.
func TestSessionID_DoesNotRotate(t *testing.T) {
	p := NewProvider(openTestStore(t), testClock, nil)

	if a, b := p.SessionID(), p.SessionID(); a != b {
		t.Errorf("SessionID() rotated on read: %q then %q", a, b)
	}
}

// TestNewSessionID_Rotates verifies explicit rotation replaces the session ID
// and persists the replacement.
func TestNewSessionID_Rotates(t *testing.T) {
	store := openTestStore(t)
	p := NewProvider(store, testClock, nil)

	old := p.SessionID()
	fresh := p.NewSessionID()
	if fresh == old {
		t.Error("NewSessionID() should return a different ID")
	}
	if p.SessionID() != fresh {
		t.Error("SessionID() after rotation should return the new ID")
	}

	// A new provider over the same store sees the rotated value.
	if got := NewProvider(store, testClock, nil).SessionID(); got != fresh {
		t.Errorf("SessionID() from fresh provider = %q, want %q", got, fresh)
	}
}

// TestProvider_NilStore_EphemeralIDs verifies the provider works without
// storage: IDs exist but do not survive a restart.
func TestProvider_NilStore_EphemeralIDs(t *testing.T) {
	p := NewProvider(nil, testClock, nil)

	if p.DeviceID() == "" {
		t.Error("DeviceID() with nil store returned empty string")
	}
	if p.SessionID() == "" {
		t.Error("SessionID() with nil store returned empty string")
	}
	if a, b := p.DeviceID(), p.DeviceID(); a != b {
		t.Errorf("DeviceID() with nil store not cached: %q then %q", a, b)
	}
}

// TestFingerprint_ComposesAllParts verifies the fingerprint carries session,
// device, and parsed device info.
func TestFingerprint_ComposesAllParts(t *testing.T) {
	p := NewProvider(openTestStore(t), testClock, nil)

	const ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fp := p.Fingerprint(ua)

	if fp.SessionID != p.SessionID() {
		t.Errorf("Fingerprint.SessionID = %q, want %q", fp.SessionID, p.SessionID())
	}
	if fp.DeviceID != p.DeviceID() {
		t.Errorf("Fingerprint.DeviceID = %q, want %q", fp.DeviceID, p.DeviceID())
	}
	if fp.DeviceInfo.Browser != "Chrome" || fp.DeviceInfo.OS != "Windows" || fp.DeviceInfo.DeviceType != "desktop" {
		t.Errorf("Fingerprint.DeviceInfo = %+v, want Chrome/Windows/desktop", fp.DeviceInfo)
	}
}
