package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Beacon is best-effort fire-and-forget delivery designed to survive page
// teardown. Send returns whether the payload was accepted for delivery at
// enqueue time; there is no visibility into the server response.
type Beacon interface {
	Send(path string, body []byte) bool
}

// HTTPBeacon implements Beacon with a detached POST. The request runs on
// its own goroutine with a short timeout independent of the caller, the way
// a browser beacon outlives the page that enqueued it.
type HTTPBeacon struct {
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPBeacon creates a beacon sender. An empty baseURL makes every Send
// report failure at enqueue time.
func NewHTTPBeacon(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPBeacon {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPBeacon{
		baseURL: baseURL,
		timeout: timeout,
		logger:  logger.With("component", "beacon"),
	}
}

// Send implements Beacon.
func (b *HTTPBeacon) Send(path string, body []byte) bool {
	if b.baseURL == "" {
		return false
	}

	url := b.baseURL + path

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			b.logger.Debug("beacon request build failed", "url", url, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			b.logger.Debug("beacon delivery failed", "url", url, "error", err)
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return true
}
