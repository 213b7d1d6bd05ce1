// Command collector runs the HTTP ingestion service for activity reports.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/edupulse/engage/internal/archive"
	"github.com/edupulse/engage/internal/collector"
	"github.com/edupulse/engage/internal/dedup"
	"github.com/edupulse/engage/internal/observability"
	"github.com/edupulse/engage/internal/store"
)

// Config holds all collector configuration.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error)
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is the log format (json, text)
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// DBPath is the sqlite database file
	DBPath string `env:"DB_PATH" envDefault:"./collector.db"`

	// HTTP server configuration
	HTTP collector.Config `envPrefix:""`

	// Report deduplication configuration
	Dedup dedup.Config `envPrefix:""`

	// Parquet archival configuration
	Archive archive.Config `envPrefix:""`
}

func main() {
	// Load configuration from environment
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting engage collector",
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTP.Addr,
		"db_path", cfg.DBPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Open the store
	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Setup observability
	obs, err := observability.New("engage-collector")
	if err != nil {
		logger.Error("failed to setup observability", "error", err)
		os.Exit(1)
	}

	metrics, err := observability.NewMetrics(obs.Meter())
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	// Start report deduplication
	dd := dedup.New(cfg.Dedup, logger)
	dd.Start(ctx)

	// Start parquet archival
	archiver := archive.New(cfg.Archive, st, metrics, logger)
	archiver.Start(ctx)

	// Create and start HTTP server
	svc := collector.NewService(st, dd, metrics, logger)
	server := collector.NewServer(cfg.HTTP, svc, obs, metrics, st.Ping, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	archiver.Stop()
	dd.Stop()

	obsCtx, obsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer obsCancel()
	if err := obs.Shutdown(obsCtx); err != nil {
		logger.Error("observability shutdown error", "error", err)
	}

	logger.Info("collector stopped")
}

// setupLogger creates a logger based on configuration.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
