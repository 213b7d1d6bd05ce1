package collector

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/edupulse/engage/internal/dedup"
	"github.com/edupulse/engage/internal/observability"
	"github.com/edupulse/engage/internal/store"
)

// maxDurationSeconds mirrors the SDK's per-session cap. Anything above it
// is a malformed report, not real engagement.
const maxDurationSeconds = 86400

const dateLayout = "2006-01-02"

// Service implements the activity ingest business logic used by the HTTP
// handlers.
type Service struct {
	store   *store.Store
	dedup   *dedup.Service
	metrics *observability.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService creates a Service. metrics may be nil to disable
// instrumentation.
func NewService(st *store.Store, dd *dedup.Service, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		dedup:   dd,
		metrics: metrics,
		logger:  logger.With("component", "ingest"),
		clock:   time.Now,
	}
}

// IngestActivityLog handles one per-session report: validate, dedup,
// append to the session log, and fold the duration into the client's daily
// total. A duplicate is not an error; the client already treats the
// original as delivered.
func (s *Service) IngestActivityLog(ctx context.Context, clientID string, req *activityLogRequest) (*ingestResponse, error) {
	if clientID == "" {
		return nil, ErrClientIDRequired
	}
	if req.SessionID == "" {
		s.countRejected(ctx, "missing_session")
		return nil, ErrSessionIDRequired
	}

	duration, ok := req.duration()
	if !ok {
		s.countRejected(ctx, "missing_duration")
		return nil, ErrDurationRequired
	}
	if err := validateDuration(duration); err != nil {
		s.countRejected(ctx, "bad_duration")
		return nil, err
	}

	date, err := s.normalizeDate(req.Date)
	if err != nil {
		s.countRejected(ctx, "bad_date")
		return nil, err
	}

	if s.dedup.IsDuplicate(dedup.SessionKey(req.SessionID, duration)) {
		if s.metrics != nil {
			s.metrics.DuplicatesDropped.Add(ctx, 1)
		}
		s.logger.Debug("duplicate session report dropped",
			"client_id", clientID,
			"session_id", req.SessionID,
			"duration_seconds", duration,
		)
		return &ingestResponse{Status: "duplicate"}, nil
	}

	rec := store.SessionRecord{
		ClientID:        clientID,
		SessionID:       req.SessionID,
		DeviceID:        req.DeviceID,
		AccountID:       req.AccountID,
		Date:            date,
		StartTimeMs:     req.SessionStartTimeMs,
		EndTimeMs:       req.SessionEndTimeMs,
		DurationSeconds: duration,
		EndReason:       req.SessionEndReason,
		Browser:         req.DeviceInfo.Browser,
		OS:              req.DeviceInfo.OS,
		DeviceType:      req.DeviceInfo.DeviceType,
	}
	if err := s.store.RecordSession(ctx, rec); err != nil {
		s.logger.Error("failed to record session", "client_id", clientID, "error", err)
		return nil, err
	}
	if err := s.store.AddDailyTime(ctx, clientID, date, duration); err != nil {
		s.logger.Error("failed to update daily total", "client_id", clientID, "error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsRecorded.Add(ctx, 1,
			otelmetric.WithAttributes(attribute.String("end_reason", req.SessionEndReason)))
		s.metrics.SessionDuration.Record(ctx, duration)
	}
	s.logger.Debug("session recorded",
		"client_id", clientID,
		"session_id", req.SessionID,
		"duration_seconds", duration,
		"end_reason", req.SessionEndReason,
	)

	return &ingestResponse{Status: "accepted"}, nil
}

// IngestTrackTime handles a checkpoint/beacon report (session_only) or a
// legacy cumulative daily total. Session-only reports add to the day;
// cumulative ones raise the day's total to the reported value, never
// lowering it.
func (s *Service) IngestTrackTime(ctx context.Context, clientID string, req *trackTimeRequest) (*ingestResponse, error) {
	if clientID == "" {
		return nil, ErrClientIDRequired
	}

	seconds, ok := req.seconds()
	if !ok {
		s.countRejected(ctx, "missing_duration")
		return nil, ErrDurationRequired
	}
	if err := validateDuration(seconds); err != nil {
		s.countRejected(ctx, "bad_duration")
		return nil, err
	}

	date, err := s.normalizeDate(req.Date)
	if err != nil {
		s.countRejected(ctx, "bad_date")
		return nil, err
	}

	if req.SessionOnly {
		if req.SessionID == "" {
			s.countRejected(ctx, "missing_session")
			return nil, ErrSessionIDRequired
		}
		if s.dedup.IsDuplicate(dedup.SessionKey(req.SessionID, seconds)) {
			if s.metrics != nil {
				s.metrics.DuplicatesDropped.Add(ctx, 1)
			}
			return &ingestResponse{Status: "duplicate"}, nil
		}
		if err := s.store.AddDailyTime(ctx, clientID, date, seconds); err != nil {
			s.logger.Error("failed to update daily total", "client_id", clientID, "error", err)
			return nil, err
		}
	} else {
		if err := s.store.SetDailyTimeIfGreater(ctx, clientID, date, seconds); err != nil {
			s.logger.Error("failed to set daily total", "client_id", clientID, "error", err)
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.TrackTimeReports.Add(ctx, 1,
			otelmetric.WithAttributes(attribute.Bool("session_only", req.SessionOnly)))
	}

	return &ingestResponse{Status: "accepted"}, nil
}

// History returns the client's daily totals, bounded to limit days.
func (s *Service) History(ctx context.Context, clientID string, limit int) (*historyResponse, error) {
	if clientID == "" {
		return nil, ErrClientIDRequired
	}

	history, err := s.store.DailyHistory(ctx, clientID, limit)
	if err != nil {
		s.logger.Error("failed to load history", "client_id", clientID, "error", err)
		return nil, err
	}

	return &historyResponse{ClientID: clientID, History: history}, nil
}

// normalizeDate validates the reported date, defaulting to today when the
// report omits it (beacons skip the field to stay small).
func (s *Service) normalizeDate(date string) (string, error) {
	if date == "" {
		return s.clock().Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", ErrBadDate
	}
	return date, nil
}

func validateDuration(seconds int64) error {
	if seconds < 0 {
		return ErrDurationNegative
	}
	if seconds > maxDurationSeconds {
		return ErrDurationTooLarge
	}
	return nil
}

func (s *Service) countRejected(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.RejectedReports.Add(ctx, 1,
			otelmetric.WithAttributes(attribute.String("reason", reason)))
	}
}
