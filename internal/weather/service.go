package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/metrics"
)

// Service exposes measurement recording, lookup and statistics on top of a Store.
type Service struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewService creates a new Service. logger and collector may be nil.
func NewService(store Store, logger *zap.Logger, collector *metrics.Collector) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: collector,
	}
}

// Add persists a measurement.
func (s *Service) Add(ctx context.Context, m Measurement) error {
	s.logger.Info("adding measurement",
		zap.Time("timestamp", m.Timestamp()),
		zap.Stringer("measurement", m),
	)

	if err := s.store.Add(ctx, m); err != nil {
		s.metrics.StoreError("add")
		s.logger.Error("add measurement failed", zap.Time("timestamp", m.Timestamp()), zap.Error(err))
		return err
	}

	s.metrics.MeasurementAdded()
	return nil
}

// Fetch returns the measurement recorded at ts.
func (s *Service) Fetch(ctx context.Context, ts time.Time) (Measurement, error) {
	ts = NormalizeTimestamp(ts)
	s.logger.Info("fetching measurement", zap.Time("timestamp", ts))

	m, err := s.store.Fetch(ctx, ts)
	if err != nil {
		s.storeFailure("fetch", ts, err)
		return Measurement{}, err
	}

	s.logger.Debug("found measurement", zap.Stringer("measurement", m))
	return m, nil
}

// QueryRange returns the measurements in [from, to).
func (s *Service) QueryRange(ctx context.Context, from, to time.Time) ([]Measurement, error) {
	s.logger.Info("querying date range",
		zap.Time("from", from.UTC()),
		zap.Time("to", to.UTC()),
	)

	measurements, err := s.store.QueryRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		s.metrics.StoreError("query_range")
		return nil, err
	}

	s.logger.Info("range query complete", zap.Int("count", len(measurements)))
	return measurements, nil
}

// Delete removes the measurements recorded at ts.
func (s *Service) Delete(ctx context.Context, ts time.Time) (int, error) {
	ts = NormalizeTimestamp(ts)

	n, err := s.store.Delete(ctx, ts)
	if err != nil {
		s.storeFailure("delete", ts, err)
		return 0, err
	}

	s.logger.Info("deleted measurements", zap.Time("timestamp", ts), zap.Int("count", n))
	return n, nil
}

// storeFailure records a failed lookup. A missing measurement is an expected
// outcome and is not counted.
func (s *Service) storeFailure(op string, ts time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	s.metrics.StoreError(op)
	s.logger.Error(op+" measurement failed", zap.Time("timestamp", ts), zap.Error(err))
}

// Stats queries [from, to) and analyzes the result. Statistics are checked
// before the store is queried so invalid requests never touch storage.
func (s *Service) Stats(ctx context.Context, from, to time.Time, metricNames []string, statistics []Statistic) ([]AggregateResult, error) {
	for _, stat := range statistics {
		if !stat.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedStatistic, stat)
		}
	}

	measurements, err := s.QueryRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := Analyze(measurements, metricNames, statistics)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveAnalyze(time.Since(start), len(results))

	s.logger.Debug("computed statistics",
		zap.Strings("metrics", metricNames),
		zap.Int("measurements", len(measurements)),
		zap.Int("results", len(results)),
	)
	return results, nil
}
