package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/ingest"
	"github.com/i474232898/weathertracker/internal/metrics"
	"github.com/i474232898/weathertracker/internal/store"
	"github.com/i474232898/weathertracker/internal/weather"
)

const (
	defaultFetchInterval     = 15 * time.Minute
	defaultRetentionInterval = time.Hour
	jobTimeout               = 30 * time.Second
)

// Collector records one measurement for a location.
type Collector interface {
	Collect(ctx context.Context, loc ingest.Location) (weather.Measurement, error)
}

// Config describes the periodic jobs to run. A nil Collector or Pruner, or a
// zero MaxAge, disables the corresponding job.
type Config struct {
	Collector     Collector
	Location      ingest.Location
	FetchInterval time.Duration

	Pruner            store.Pruner
	MaxAge            time.Duration
	RetentionInterval time.Duration
}

// Scheduler periodically records provider readings and prunes old measurements.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// New creates a new Scheduler.
func New(cfg Config, logger *zap.Logger, collector *metrics.Collector) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = defaultFetchInterval
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = defaultRetentionInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		logger:    logger,
		metrics:   collector,
		now:       time.Now,
	}
}

// Start schedules the configured jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	jobs := 0

	if s.cfg.Collector != nil && !s.cfg.Location.IsZero() {
		if _, err := s.scheduler.Every(s.cfg.FetchInterval).Do(s.collect); err != nil {
			return err
		}
		jobs++
	} else {
		s.logger.Info("scheduler: no location or providers configured; ingestion disabled")
	}

	if s.cfg.Pruner != nil && s.cfg.MaxAge > 0 {
		if _, err := s.scheduler.Every(s.cfg.RetentionInterval).Do(s.prune); err != nil {
			return err
		}
		jobs++
	}

	if jobs == 0 {
		s.logger.Info("scheduler: nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Debug("scheduler: running ingestion job", zap.Stringer("location", s.cfg.Location))
	if _, err := s.cfg.Collector.Collect(ctx, s.cfg.Location); err != nil {
		s.logger.Error("scheduler: ingestion failed", zap.Stringer("location", s.cfg.Location), zap.Error(err))
	}
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-s.cfg.MaxAge)
	n, err := s.cfg.Pruner.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduler: retention failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return
	}

	s.metrics.Pruned(n)
	s.logger.Info("scheduler: retention complete", zap.Time("cutoff", cutoff), zap.Int("removed", n))
}
