package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/logger"
	"github.com/robfig/cron/v3"
)

// ReaperSchedule runs the stale-run reaper every five minutes
const ReaperSchedule = "@every 5m"

// PoolStatsSchedule samples the database pool every minute
const PoolStatsSchedule = "@every 1m"

// StatsSource exposes connection pool statistics
type StatsSource interface {
	Stats() sql.DBStats
}

// PoolGauge records connection pool usage
type PoolGauge interface {
	UpdateDBConnections(inUse, idle int)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron   *cron.Cron
	reaper *StaleRunReaper
	stats  StatsSource
	gauge  PoolGauge
	logger logger.Logger
}

// NewCronManager creates a new cron manager. stats and gauge may be nil.
func NewCronManager(reaper *StaleRunReaper, stats StatsSource, gauge PoolGauge, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Default()
	}
	return &CronManager{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		reaper: reaper,
		stats:  stats,
		gauge:  gauge,
		logger: log.With("component", "cron"),
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	if _, err := cm.cron.AddFunc(ReaperSchedule, cm.runReaper); err != nil {
		return err
	}

	if cm.stats != nil && cm.gauge != nil {
		if _, err := cm.cron.AddFunc(PoolStatsSchedule, cm.recordPoolStats); err != nil {
			return err
		}
	}

	cm.logger.Info("cron jobs configured", "jobs", len(cm.cron.Entries()))
	return nil
}

func (cm *CronManager) runReaper() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := cm.reaper.Reap(ctx)
	if err != nil {
		cm.logger.Error("stale run reaper failed", "error", err)
		return
	}
	if res.Analyses > 0 || res.Scrapes > 0 {
		cm.logger.Info("stale runs reaped", "analyses", res.Analyses, "scrapes", res.Scrapes)
	}
}

func (cm *CronManager) recordPoolStats() {
	s := cm.stats.Stats()
	cm.gauge.UpdateDBConnections(s.InUse, s.Idle)
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Info("stopping cron scheduler")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
	}
}
