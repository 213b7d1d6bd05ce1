package observability

import (
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics holds the collector's metric instruments. Instruments are created
// once at startup and shared with middleware, handlers, and background
// jobs.
type Metrics struct {
	// HTTP metrics
	HTTPRequestDuration otelmetric.Float64Histogram
	HTTPRequestTotal    otelmetric.Int64Counter
	HTTPRequestErrors   otelmetric.Int64Counter

	// Ingest metrics
	SessionsRecorded  otelmetric.Int64Counter
	SessionDuration   otelmetric.Int64Histogram
	TrackTimeReports  otelmetric.Int64Counter
	DuplicatesDropped otelmetric.Int64Counter
	RejectedReports   otelmetric.Int64Counter
	RateLimited       otelmetric.Int64Counter

	// Archive metrics
	ArchiveRuns     otelmetric.Int64Counter
	ArchiveFailures otelmetric.Int64Counter
	ArchivedDays    otelmetric.Int64Counter
}

// NewMetrics creates all metric instruments from the given Meter.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestTotal, err = meter.Int64Counter(
		"http.request.total",
		otelmetric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestErrors, err = meter.Int64Counter(
		"http.request.errors",
		otelmetric.WithDescription("HTTP request errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, err
	}

	m.SessionsRecorded, err = meter.Int64Counter(
		"activity.sessions.recorded",
		otelmetric.WithDescription("Activity sessions recorded"),
	)
	if err != nil {
		return nil, err
	}

	m.SessionDuration, err = meter.Int64Histogram(
		"activity.session.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Recorded session durations in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.TrackTimeReports, err = meter.Int64Counter(
		"activity.tracktime.reports",
		otelmetric.WithDescription("Track-time (checkpoint/beacon) reports accepted"),
	)
	if err != nil {
		return nil, err
	}

	m.DuplicatesDropped, err = meter.Int64Counter(
		"activity.duplicates.dropped",
		otelmetric.WithDescription("Replayed reports dropped by dedup"),
	)
	if err != nil {
		return nil, err
	}

	m.RejectedReports, err = meter.Int64Counter(
		"activity.reports.rejected",
		otelmetric.WithDescription("Reports rejected by validation"),
	)
	if err != nil {
		return nil, err
	}

	m.RateLimited, err = meter.Int64Counter(
		"activity.requests.ratelimited",
		otelmetric.WithDescription("Requests rejected by the rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	m.ArchiveRuns, err = meter.Int64Counter(
		"archive.runs",
		otelmetric.WithDescription("Archive job runs"),
	)
	if err != nil {
		return nil, err
	}

	m.ArchiveFailures, err = meter.Int64Counter(
		"archive.failures",
		otelmetric.WithDescription("Archive job failures"),
	)
	if err != nil {
		return nil, err
	}

	m.ArchivedDays, err = meter.Int64Counter(
		"archive.days.exported",
		otelmetric.WithDescription("Client-day aggregates exported to parquet"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
