package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Paths relative to the base URL. The client identifier is interpolated
// into each.
const (
	activityLogPathFmt = "/activity/clients/%s/activity-log/"
	trackTimePathFmt   = "/activity/clients/%s/track-time/"
)

// ErrNotConfigured is returned when a send is requested without a base URL
// or client ID. Callers treat it as "skip send, log, continue".
var ErrNotConfigured = fmt.Errorf("transport: base URL and client ID are required")

// Client posts activity reports to the collector. A send succeeds on any
// 2xx; 4xx is terminal; 5xx and network errors retry per the supplied
// strategy.
type Client struct {
	http     *http.Client
	baseURL  string
	clientID string
	logger   *slog.Logger
}

// NewClient creates a transport client. baseURL and clientID may be empty,
// in which case every send returns ErrNotConfigured.
func NewClient(baseURL, clientID string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		clientID: clientID,
		logger:   logger.With("component", "transport"),
	}
}

// Configured reports whether the client has everything it needs to send.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.clientID != ""
}

// ActivityLogPath returns the activity-log path for this client, for beacon
// delivery.
func (c *Client) ActivityLogPath() string {
	return fmt.Sprintf(activityLogPathFmt, c.clientID)
}

// TrackTimePath returns the track-time path for this client, for beacon
// delivery.
func (c *Client) TrackTimePath() string {
	return fmt.Sprintf(trackTimePathFmt, c.clientID)
}

// PostActivityLog sends a per-session activity report. No inline retries:
// failures are reported to the caller, which queues the payload for the
// offline-sync path.
func (c *Client) PostActivityLog(ctx context.Context, p ActivityLogPayload) error {
	return c.post(ctx, c.ActivityLogPath(), p, NoRetry)
}

// PostTrackTime sends a checkpoint or legacy cumulative report, retrying
// per the supplied strategy.
func (c *Client) PostTrackTime(ctx context.Context, p TrackTimePayload, retry RetryStrategy) error {
	return c.post(ctx, c.TrackTimePath(), p, retry)
}

// post sends one JSON POST with the given retry schedule.
func (c *Client) post(ctx context.Context, path string, payload any, retry RetryStrategy) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if retry == nil {
		retry = NoRetry
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= retry.MaxAttempts(); attempt++ {
		if attempt > 0 {
			delay := retry.NextDelay(attempt - 1)
			if delay == 0 {
				break
			}
			c.logger.Debug("retrying send", "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		// Drain to enable connection reuse.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("client error: status %d", resp.StatusCode)
		}

		lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
	}

	return lastErr
}
