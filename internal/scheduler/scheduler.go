package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/powderchaser/backend/internal/pkg/logger"
)

const purgeTimeout = 30 * time.Second

// Maintainer is the cache maintenance surface the jobs drive.
type Maintainer interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int, error)
	RefreshFavorites(ctx context.Context) error
}

// Config controls which jobs run and how often.
type Config struct {
	PurgeInterval   time.Duration
	Retention       time.Duration
	RefreshInterval time.Duration
}

// Scheduler periodically purges old cache entries and refreshes favorite resorts.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	maintainer Maintainer
	cfg        Config
	logger     logger.Logger
}

// New creates a new Scheduler.
func New(cfg Config, maintainer Maintainer, log logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		maintainer: maintainer,
		cfg:        cfg,
		logger:     log.WithField("component", "scheduler"),
	}
}

// Start schedules both jobs and starts the underlying scheduler. A job with a
// non-positive interval is skipped.
func (s *Scheduler) Start() error {
	scheduled := 0

	if s.cfg.PurgeInterval > 0 && s.cfg.Retention > 0 {
		if _, err := s.scheduler.Every(s.cfg.PurgeInterval).SingletonMode().Do(s.runPurge); err != nil {
			return err
		}
		scheduled++
	}

	if s.cfg.RefreshInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.RefreshInterval).SingletonMode().Do(s.runRefresh); err != nil {
			return err
		}
		scheduled++
	}

	if scheduled == 0 {
		s.logger.Info("scheduler: no jobs configured; nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	s.logger.Infof("scheduler: started %d jobs (purge every %v, refresh every %v)",
		scheduled, s.cfg.PurgeInterval, s.cfg.RefreshInterval)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	removed, err := s.maintainer.PurgeExpired(ctx, s.cfg.Retention)
	if err != nil {
		s.logger.Errorf("scheduler: purge failed after removing %d entries: %v", removed, err)
		return
	}
	s.logger.Infof("scheduler: purged %d entries older than %v", removed, s.cfg.Retention)
}

// runRefresh relies on RefreshFavorites to bound itself with the background budget.
func (s *Scheduler) runRefresh() {
	start := time.Now()
	if err := s.maintainer.RefreshFavorites(context.Background()); err != nil {
		s.logger.Warnf("scheduler: favorites refresh failed: %v", err)
		return
	}
	s.logger.Debugf("scheduler: favorites refreshed in %v", time.Since(start))
}
