// Package maintenance schedules periodic housekeeping: audit retention and the retry of
// avatars that have not reached object storage yet.
package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/teamspace/pkg/logger"
	"github.com/charlesng35/teamspace/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultAuditSpec          = "@daily"
	defaultAvatarSpec         = "@hourly"
	defaultAvatarBatch        = 100
)

// AuditPruner deletes audit logs past their retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// AvatarSweeper re-hosts team avatars that still point outside object storage.
type AvatarSweeper interface {
	SweepAvatars(ctx context.Context, limit int) (int, error)
}

// Cleaner coordinates background maintenance tasks.
type Cleaner struct {
	audit     AuditPruner
	avatars   AvatarSweeper
	cron      *cron.Cron
	log       *zap.Logger
	retention int
	batch     int

	auditSchedule  string
	avatarSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithAvatarSchedule overrides the cron specification for the avatar sweep.
func WithAvatarSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.avatarSchedule = spec
		}
	}
}

// WithAvatarBatch caps the number of teams handled per sweep.
func WithAvatarBatch(n int) Option {
	return func(cleaner *Cleaner) {
		if n > 0 {
			cleaner.batch = n
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(audit AuditPruner, avatars AvatarSweeper, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		audit:          audit,
		avatars:        avatars,
		retention:      defaultAuditRetentionDays,
		batch:          defaultAvatarBatch,
		auditSchedule:  defaultAuditSpec,
		avatarSchedule: defaultAvatarSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if c.audit == nil && c.avatars == nil {
		return nil
	}

	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			c.pruneAudit(context.Background())
		}); err != nil {
			return err
		}
	}

	if c.avatars != nil {
		if _, err := c.cron.AddFunc(c.avatarSchedule, func() {
			c.sweepAvatars(context.Background())
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.audit != nil {
		errs = multierr.Append(errs, c.pruneAudit(ctx))
	}
	if c.avatars != nil {
		errs = multierr.Append(errs, c.sweepAvatars(ctx))
	}
	return errs
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
	if err != nil {
		c.log.Warn("audit cleanup failed", zap.Error(err))
		metrics.MaintenanceRuns.WithLabelValues("audit", "error").Inc()
		return err
	}
	if removed > 0 {
		c.log.Info("audit logs pruned", zap.Int64("removed", removed))
	}
	metrics.MaintenanceRuns.WithLabelValues("audit", "success").Inc()
	return nil
}

func (c *Cleaner) sweepAvatars(ctx context.Context) error {
	updated, err := c.avatars.SweepAvatars(ctx, c.batch)
	if updated > 0 {
		c.log.Info("avatars re-hosted", zap.Int("teams", updated))
	}
	if err != nil {
		// one failure per team; the rest of the batch still ran
		for _, e := range multierr.Errors(err) {
			c.log.Warn("avatar sweep failed", zap.Error(e))
		}
		metrics.MaintenanceRuns.WithLabelValues("avatar_sweep", "error").Inc()
		return err
	}
	metrics.MaintenanceRuns.WithLabelValues("avatar_sweep", "success").Inc()
	return nil
}
