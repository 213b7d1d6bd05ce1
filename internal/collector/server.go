package collector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/edupulse/engage/internal/observability"
)

// Server is the collector HTTP server.
type Server struct {
	cfg     Config
	svc     *Service
	obs     *observability.Module
	metrics *observability.Metrics
	logger  *slog.Logger
	http    *http.Server
	limiter *rate.Limiter
	healthy func(context.Context) error
}

// NewServer wires routes, middleware, and timeouts. healthCheck is probed
// by the healthz endpoint; nil means always healthy.
func NewServer(
	cfg Config,
	svc *Service,
	obs *observability.Module,
	metrics *observability.Metrics,
	healthCheck func(context.Context) error,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		obs:     obs,
		metrics: metrics,
		logger:  logger.With("component", "http"),
		healthy: healthCheck,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /activity/clients/{clientID}/activity-log/{$}", s.handleActivityLog)
	mux.HandleFunc("POST /activity/clients/{clientID}/track-time/{$}", s.handleTrackTime)
	mux.HandleFunc("GET /activity/clients/{clientID}/history/{$}", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if obs != nil {
		mux.Handle("GET /metrics", obs.MetricsHandler())
	}

	var handler http.Handler = mux
	if metrics != nil {
		handler = observability.HTTPMetrics(metrics)(handler)
	}
	handler = s.corsMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)

	s.http = &http.Server{
		Addr:           cfg.Addr,
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	return s
}

// Start blocks serving requests until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.logger.Info("collector listening", "addr", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Handler exposes the assembled handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	var req activityLogRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.svc.IngestActivityLog(r.Context(), r.PathValue("clientID"), &req)
	s.respond(w, resp, err)
}

func (s *Server) handleTrackTime(w http.ResponseWriter, r *http.Request) {
	var req trackTimeRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.svc.IngestTrackTime(r.Context(), r.PathValue("clientID"), &req)
	s.respond(w, resp, err)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	resp, err := s.svc.History(r.Context(), r.PathValue("clientID"), limit)
	s.respond(w, resp, err)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.healthy != nil {
		if err := s.healthy(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unhealthy"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a bounded JSON body, answering 400 on malformed input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return false
	}
	return true
}

// respond maps service results to HTTP: validation errors are 400,
// everything else unexpected is 500.
func (s *Server) respond(w http.ResponseWriter, resp any, err error) {
	if err == nil {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	if isValidationError(err) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func isValidationError(err error) bool {
	for _, v := range []error{
		ErrClientIDRequired,
		ErrSessionIDRequired,
		ErrDurationRequired,
		ErrDurationNegative,
		ErrDurationTooLarge,
		ErrBadDate,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// rateLimitMiddleware applies a global token bucket. Health and metrics
// probes bypass it.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimited.Add(r.Context(), 1)
			}
			s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers browser preflights and stamps the CORS headers.
// Beacon and fetch sends from SDK pages are cross-origin by design.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := s.cfg.CORS.AllowedOrigins
	methods := strings.Join(s.cfg.CORS.AllowedMethods, ", ")
	headers := strings.Join(s.cfg.CORS.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(s.cfg.CORS.MaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin, allowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
