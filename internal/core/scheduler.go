package core

// scheduler.go runs audit retention in the background.
//
// The job deletes audit records older than the retention window. It runs once
// on start and then every CheckInterval until ctx is cancelled. A failed run
// is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig configures the audit retention job.
type RetentionConfig struct {
	RetentionDays int           // Days to keep audit records (default: 365)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 365
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler blocks until ctx is cancelled. Run it in a goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("audit retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval.String(),
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

// runRetentionJob performs one prune.
func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := s.now().UTC().AddDate(0, 0, -cfg.RetentionDays)

	pruned, err := s.PruneAuditLogs(ctx, cutoff)
	if err != nil {
		slog.Error("audit retention failed", "error", err)
		return
	}

	auditPruned.Add(float64(pruned))
	slog.Info("audit retention completed",
		"entries_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
