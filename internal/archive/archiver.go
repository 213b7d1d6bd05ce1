package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edupulse/engage/internal/observability"
	"github.com/edupulse/engage/internal/store"
)

// Config holds archival configuration.
//
// Environment variable overrides:
//   - ARCHIVE_DIR:       output directory for parquet files
//   - ARCHIVE_RETENTION: days kept in the hot store (default: 90)
//   - ARCHIVE_SCHEDULE:  cron expression for the export job (default: daily
//     at 02:00)
type Config struct {
	Dir           string `env:"ARCHIVE_DIR"       envDefault:"./archive"`
	RetentionDays int    `env:"ARCHIVE_RETENTION" envDefault:"90"`
	Schedule      string `env:"ARCHIVE_SCHEDULE"  envDefault:"0 2 * * *"`
}

// Archiver periodically exports aggregates older than the retention window
// to parquet and evicts them from sqlite.
type Archiver struct {
	cfg     Config
	store   *store.Store
	metrics *observability.Metrics
	logger  *slog.Logger
	clock   func() time.Time
	cron    *cron.Cron
	stopCh  chan struct{}
}

// New creates an Archiver. metrics may be nil.
func New(cfg Config, st *store.Store, metrics *observability.Metrics, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		cfg:     cfg,
		store:   st,
		metrics: metrics,
		logger:  logger.With("component", "archive"),
		clock:   time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start schedules the export job. An invalid cron expression falls back to
// a 24h ticker rather than disabling archival.
func (a *Archiver) Start(ctx context.Context) {
	a.cron = cron.New()
	_, err := a.cron.AddFunc(a.cfg.Schedule, func() {
		if err := a.RunOnce(ctx); err != nil {
			a.logger.Error("scheduled archive run failed", "error", err)
		}
	})
	if err != nil {
		a.logger.Error("invalid archive schedule, falling back to 24h ticker",
			"schedule", a.cfg.Schedule, "error", err)
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := a.RunOnce(ctx); err != nil {
						a.logger.Error("scheduled archive run failed", "error", err)
					}
				case <-ctx.Done():
					return
				case <-a.stopCh:
					return
				}
			}
		}()
		return
	}
	a.cron.Start()
	a.logger.Info("archiver started", "schedule", a.cfg.Schedule, "retention_days", a.cfg.RetentionDays)
}

// Stop halts scheduling. In-flight runs finish.
func (a *Archiver) Stop() {
	close(a.stopCh)
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}

// RunOnce exports everything older than the retention cutoff and evicts it.
// Eviction happens only after the parquet file is durably written; a failed
// run leaves the hot store untouched and retries on the next schedule.
func (a *Archiver) RunOnce(ctx context.Context) error {
	if a.metrics != nil {
		a.metrics.ArchiveRuns.Add(ctx, 1)
	}

	cutoff := a.clock().AddDate(0, 0, -a.cfg.RetentionDays).Format("2006-01-02")

	totals, err := a.store.TotalsBefore(ctx, cutoff)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("load totals: %w", err))
	}
	if len(totals) == 0 {
		a.logger.Debug("nothing to archive", "cutoff", cutoff)
		return nil
	}

	rows := make([]DailyRow, len(totals))
	for i, t := range totals {
		rows[i] = rowFromTotal(t)
	}

	data, err := writeParquet(rows)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("encode parquet: %w", err))
	}

	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return a.fail(ctx, fmt.Errorf("create archive dir: %w", err))
	}

	name := fmt.Sprintf("daily-activity-%s-%d.parquet", cutoff, a.clock().UnixMilli())
	path := filepath.Join(a.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return a.fail(ctx, fmt.Errorf("write archive file: %w", err))
	}

	if err := a.store.EvictBefore(ctx, cutoff); err != nil {
		return a.fail(ctx, fmt.Errorf("evict archived days: %w", err))
	}

	if a.metrics != nil {
		a.metrics.ArchivedDays.Add(ctx, int64(len(rows)))
	}
	a.logger.Info("archive run complete",
		"cutoff", cutoff,
		"days_exported", len(rows),
		"file", path,
		"bytes", len(data),
	)
	return nil
}

func (a *Archiver) fail(ctx context.Context, err error) error {
	if a.metrics != nil {
		a.metrics.ArchiveFailures.Add(ctx, 1)
	}
	return err
}
