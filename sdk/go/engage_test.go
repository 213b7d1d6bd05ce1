// Package engage tests the public SDK surface.
package engage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/edupulse/engage/sdk/go/lifecycle"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	sched := lifecycle.NewManualScheduler(time.Date(2026, 8, 31, 10, 0, 0, 0, time.Local))
	return Config{
		StoragePath: filepath.Join(dir, "engage.db"),
		Scheduler:   sched,
		Clock:       sched.Now,
	}
}

// TestNew_ValidConfig verifies client creation without an endpoint: tracking
// runs locally.
func TestNew_ValidConfig(t *testing.T) {
	client, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	defer client.Close()

	if client == nil {
		t.Fatal("New() returned nil client")
	}
}

// TestNew_MissingStoragePath_ReturnsError verifies the required field check.
func TestNew_MissingStoragePath_ReturnsError(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() should return error when StoragePath is missing")
	}
}

// TestNew_EndpointWithoutClientID_ReturnsError verifies the paired
// requirement.
func TestNew_EndpointWithoutClientID_ReturnsError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Endpoint = "http://localhost:8080"

	if _, err := New(cfg); err == nil {
		t.Error("New() should return error when Endpoint is set without ClientID")
	}
}

// TestMount_OpensSessionAndSnapshotReports verifies the mount lifecycle and
// the snapshot contents.
func TestMount_OpensSessionAndSnapshotReports(t *testing.T) {
	client, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	defer client.Close()

	client.Mount()

	snap := client.Snapshot()
	if !snap.IsActive {
		t.Error("Snapshot().IsActive = false after Mount(), want true")
	}
	if snap.DeviceID == "" || snap.SessionID == "" {
		t.Error("Snapshot() should carry device and session IDs")
	}

	// Mounting twice is a no-op.
	client.Mount()
	if got := client.Snapshot(); got.SessionID != snap.SessionID {
		t.Error("second Mount() should not rotate the session")
	}
}

// TestUnmount_ClosesSession verifies unmount ends the session and a second
// unmount is a no-op.
func TestUnmount_ClosesSession(t *testing.T) {
	client, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	defer client.Close()

	client.Mount()
	client.Unmount()

	if client.Snapshot().IsActive {
		t.Error("Snapshot().IsActive = true after Unmount(), want false")
	}

	client.Unmount()
}

// TestSignals_DeliveredThroughDispatcher verifies an attached signal source
// drives the tracker.
func TestSignals_DeliveredThroughDispatcher(t *testing.T) {
	cfg := testConfig(t)
	dispatcher := lifecycle.NewDispatcher()
	cfg.Signals = dispatcher

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	defer client.Close()

	client.Mount()
	dispatcher.Emit(lifecycle.Signal{Kind: lifecycle.VisibilityHidden})

	if client.Snapshot().IsActive {
		t.Error("visibility-hidden through the signal source should end the session")
	}

	dispatcher.Emit(lifecycle.Signal{Kind: lifecycle.VisibilityVisible})
	if !client.Snapshot().IsActive {
		t.Error("visibility-visible through the signal source should reopen the session")
	}

	// After unmount the subscription is gone.
	client.Unmount()
	dispatcher.Emit(lifecycle.Signal{Kind: lifecycle.VisibilityVisible})
	if client.Snapshot().IsActive {
		t.Error("signals after Unmount() should not reach the tracker")
	}
}

// TestClose_Idempotent verifies Close can be called repeatedly.
func TestClose_Idempotent(t *testing.T) {
	client, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}

	client.Mount()
	if err := client.Close(); err != nil {
		t.Errorf("Close() returned unexpected error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() returned unexpected error: %v", err)
	}
}
