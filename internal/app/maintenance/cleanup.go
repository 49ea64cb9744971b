package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jobeco/fairprice/internal/cache"
	"github.com/jobeco/fairprice/pkg/logger"
)

const (
	defaultAuditRetention = 90 * 24 * time.Hour
	defaultInvitationSpec = "@hourly"
	defaultCacheSpec      = "@every 10m"
	defaultAuditSpec      = "@daily"
)

// InvitationPurger expires lapsed invitations and removes old finished ones.
type InvitationPurger interface {
	PurgeExpired(ctx context.Context) (expired int64, deleted int64, err error)
}

// AuditPruner removes audit entries past their retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// Cleaner coordinates background maintenance: invitation expiry, cache
// entry purging and audit retention.
type Cleaner struct {
	invitations InvitationPurger
	cache       cache.Purger
	audit       AuditPruner
	cron        *cron.Cron
	log         *zap.Logger
	retention   time.Duration

	invitationSchedule string
	cacheSchedule      string
	auditSchedule      string
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

// WithCache enables purging of expired cache rows.
func WithCache(p cache.Purger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = p
	}
}

// WithAudit enables audit retention enforcement.
func WithAudit(a AuditPruner, retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		cleaner.audit = a
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithInvitationSchedule overrides the cron specification for invitation cleanup.
func WithInvitationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.invitationSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding cleanup job being skipped.
func NewCleaner(invitations InvitationPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invitations:        invitations,
		retention:          defaultAuditRetention,
		invitationSchedule: defaultInvitationSpec,
		cacheSchedule:      defaultCacheSpec,
		auditSchedule:      defaultAuditSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.invitations != nil || c.cache != nil || c.audit != nil
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if c.invitations != nil {
		if _, err := c.cron.AddFunc(c.invitationSchedule, func() {
			if err := c.purgeInvitations(context.Background()); err != nil {
				c.log.Warn("invitation cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if _, err := c.audit.CleanupOlderThan(context.Background(), c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
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

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.invitations != nil {
		errs = multierr.Append(errs, c.purgeInvitations(ctx))
	}
	if c.cache != nil {
		errs = multierr.Append(errs, c.purgeCache(ctx))
	}
	if c.audit != nil {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) purgeInvitations(ctx context.Context) error {
	expired, deleted, err := c.invitations.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if expired > 0 || deleted > 0 {
		c.log.Info("invitations purged", zap.Int64("expired", expired), zap.Int64("deleted", deleted))
	}
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("cache entries purged", zap.Int64("removed", removed))
	}
	return nil
}
