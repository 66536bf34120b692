package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront-cart/pkg/logger"
	"github.com/ikkim/storefront-cart/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const (
	JobIdleSweep         = "idle_sweep"
	JobSnapshotRetention = "snapshot_retention"

	jobTimeout = 2 * time.Minute
)

// Sweeper evicts idle in-memory carts and reports which carts are live.
type Sweeper interface {
	SweepIdle(ctx context.Context) (int, error)
	LiveStorageKeys() []string
}

// SnapshotPruner deletes stored snapshots not written since cutoff, except
// the keys in keep.
type SnapshotPruner interface {
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time, keep []string) (int64, error)
}

// CartSweepScheduler runs cart housekeeping on a cron schedule.
type CartSweepScheduler struct {
	cron      *cron.Cron
	schedule  string
	sweeper   Sweeper
	pruner    SnapshotPruner
	retention time.Duration
	metrics   *metrics.CronJobMetrics
	now       func() time.Time
}

// NewCartSweepScheduler builds a scheduler. pruner may be nil, in which case
// only the idle sweep runs.
func NewCartSweepScheduler(schedule string, sweeper Sweeper, m *metrics.CronJobMetrics) *CartSweepScheduler {
	return &CartSweepScheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule,
		sweeper:  sweeper,
		metrics:  m,
		now:      time.Now,
	}
}

// WithRetention also deletes snapshots older than retention on every run.
func (s *CartSweepScheduler) WithRetention(pruner SnapshotPruner, retention time.Duration) *CartSweepScheduler {
	if pruner != nil && retention > 0 {
		s.pruner = pruner
		s.retention = retention
	}
	return s
}

// Start registers the jobs and starts the cron runner.
func (s *CartSweepScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunSweep(context.Background()) }); err != nil {
		logger.Error("Failed to add cron job for cart sweep", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	if s.pruner != nil {
		if _, err := s.cron.AddFunc(s.schedule, func() { s.RunRetention(context.Background()) }); err != nil {
			logger.Error("Failed to add cron job for snapshot retention", err, map[string]interface{}{
				"schedule": s.schedule,
			})
			return err
		}
	}

	s.cron.Start()
	logger.Info("Cart sweep scheduler started", map[string]interface{}{
		"schedule":  s.schedule,
		"retention": s.retention.String(),
	})
	return nil
}

// Stop halts the runner and waits for running jobs to finish.
func (s *CartSweepScheduler) Stop() {
	logger.Info("Stopping cart sweep scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Cart sweep scheduler stopped")
}

// RunSweep runs one idle sweep.
func (s *CartSweepScheduler) RunSweep(ctx context.Context) {
	s.run(ctx, JobIdleSweep, func(ctx context.Context) (int64, error) {
		n, err := s.sweeper.SweepIdle(ctx)
		return int64(n), err
	})
}

// RunRetention runs one snapshot retention pass.
func (s *CartSweepScheduler) RunRetention(ctx context.Context) {
	if s.pruner == nil {
		return
	}
	s.run(ctx, JobSnapshotRetention, func(ctx context.Context) (int64, error) {
		return s.pruner.DeleteUpdatedBefore(ctx, s.now().Add(-s.retention), s.sweeper.LiveStorageKeys())
	})
}

func (s *CartSweepScheduler) run(ctx context.Context, job string, fn func(context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	affected, err := fn(ctx)
	s.metrics.ObserveDuration(job, time.Since(start))

	if err != nil {
		s.metrics.IncFailure(job)
		logger.Error("Scheduled cart job failed", err, map[string]interface{}{
			"job":      job,
			"affected": affected,
		})
		return
	}

	s.metrics.IncSuccess(job)
	logger.Debug("Scheduled cart job finished", map[string]interface{}{
		"job":      job,
		"affected": affected,
	})
}
