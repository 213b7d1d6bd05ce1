package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/edupulse/engage/sdk/go/internal/storage"
)

// maxPendingSends bounds the offline queue; the oldest entries are evicted
// to make room.
const maxPendingSends = 50

// PendingSend is one payload waiting for connectivity. Exactly one of the
// two payload fields is set.
type PendingSend struct {
	ActivityLog *ActivityLogPayload `json:"activity_log,omitempty"`
	TrackTime   *TrackTimePayload   `json:"track_time,omitempty"`
	QueuedAtMs  int64               `json:"queued_at"`
}

// OfflineQueue persists payloads that failed to send and replays them when
// the network returns or on the next checkpoint tick. Entries are drained
// in FIFO order; a failed replay stops the drain and keeps the remainder.
type OfflineQueue struct {
	// mu serializes the load-modify-save cycle on the backing key: a Push
	// landing mid-Drain must not be lost when the drain rewrites the list.
	mu     sync.Mutex
	store  *storage.Store
	logger *slog.Logger
}

// NewOfflineQueue creates an OfflineQueue over the durable store.
func NewOfflineQueue(store *storage.Store, logger *slog.Logger) *OfflineQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfflineQueue{
		store:  store,
		logger: logger.With("component", "offline-queue"),
	}
}

// Push appends a pending send, evicting the oldest entries beyond capacity.
func (q *OfflineQueue) Push(p PendingSend) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.load()
	pending = append(pending, p)
	if len(pending) > maxPendingSends {
		pending = pending[len(pending)-maxPendingSends:]
	}
	q.store.SaveJSON(storage.KeyPendingSends, pending)
	q.logger.Debug("queued payload for offline sync", "pending", len(pending))
}

// Len returns the number of queued payloads.
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load())
}

// Drain replays queued payloads in order through the client. It stops at
// the first failure, persisting whatever remains. Malformed entries are
// dropped. Pushes block for the duration of the drain rather than racing
// its rewrite of the pending list.
func (q *OfflineQueue) Drain(ctx context.Context, client *Client) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.load()
	if len(pending) == 0 {
		return
	}

	sent := 0
	for _, p := range pending {
		var err error
		switch {
		case p.ActivityLog != nil:
			err = client.PostActivityLog(ctx, *p.ActivityLog)
		case p.TrackTime != nil:
			err = client.PostTrackTime(ctx, *p.TrackTime, NoRetry)
		default:
			sent++
			continue
		}

		if err != nil {
			q.logger.Debug("offline drain stopped", "sent", sent, "remaining", len(pending)-sent, "error", err)
			break
		}
		sent++
	}

	if sent == 0 {
		return
	}
	remaining := pending[sent:]
	if len(remaining) == 0 {
		q.store.Delete(storage.KeyPendingSends)
	} else {
		q.store.SaveJSON(storage.KeyPendingSends, remaining)
	}
	q.logger.Info("offline queue drained", "sent", sent, "remaining", len(remaining))
}

func (q *OfflineQueue) load() []PendingSend {
	var pending []PendingSend
	q.store.LoadJSON(storage.KeyPendingSends, &pending)
	return pending
}
