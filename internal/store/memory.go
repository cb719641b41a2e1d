package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/metrics"
	"github.com/i474232898/weathertracker/internal/weather"
)

// ErrNotFound is returned when no measurement exists at the requested timestamp.
var ErrNotFound = weather.ErrNotFound

// Pruner removes measurements older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// WithLogger sets the logger used for warnings such as duplicate timestamps.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the collector notified of duplicate timestamps.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = collector
	}
}

// ApplyOptions resolves opts against the defaults. Exported for sibling store implementations.
func ApplyOptions(opts ...Option) (*zap.Logger, *metrics.Collector) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o.logger, o.metrics
}

type entry struct {
	id          uint64
	measurement weather.Measurement
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// entries in insertion order; ids are strictly increasing
	entries []entry
	nextID  uint64

	// max number of measurements kept (0 = unlimited)
	maxHistory int

	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, opts ...Option) *MemoryStore {
	logger, collector := ApplyOptions(opts...)
	return &MemoryStore{
		maxHistory: maxHistory,
		logger:     logger,
		metrics:    collector,
	}
}

// Add appends a measurement and enforces retention by count.
func (s *MemoryStore) Add(ctx context.Context, m weather.Measurement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.entries = append(s.entries, entry{id: s.nextID, measurement: m})

	if s.maxHistory > 0 && len(s.entries) > s.maxHistory {
		over := len(s.entries) - s.maxHistory
		s.entries = append([]entry(nil), s.entries[over:]...)
	}
	return nil
}

// Fetch returns the earliest-added measurement at ts.
func (s *MemoryStore) Fetch(ctx context.Context, ts time.Time) (weather.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return weather.Measurement{}, err
	}

	ts = weather.NormalizeTimestamp(ts)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found   weather.Measurement
		matches int
	)
	for _, e := range s.entries {
		if !e.measurement.Timestamp().Equal(ts) {
			continue
		}
		if matches == 0 {
			found = e.measurement
		}
		matches++
	}

	switch {
	case matches == 0:
		s.logger.Warn("no measurements for timestamp", zap.Time("timestamp", ts))
		return weather.Measurement{}, ErrNotFound
	case matches > 1:
		s.logger.Warn("duplicate timestamp resolved to first match",
			zap.Time("timestamp", ts),
			zap.Int("matches", matches),
		)
		s.metrics.DuplicateTimestamp()
	}

	return found, nil
}

// QueryRange returns all measurements with from <= timestamp < to, ordered by timestamp.
func (s *MemoryStore) QueryRange(ctx context.Context, from, to time.Time) ([]weather.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]entry, 0)
	for _, e := range s.entries {
		if inRange(e.measurement.Timestamp(), from, to) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].measurement.Timestamp().Before(matched[j].measurement.Timestamp())
	})

	result := make([]weather.Measurement, len(matched))
	for i, e := range matched {
		result[i] = e.measurement
	}
	return result, nil
}

// Delete removes every measurement at ts.
func (s *MemoryStore) Delete(ctx context.Context, ts time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ts = weather.NormalizeTimestamp(ts)
	n := s.removeWhere(func(m weather.Measurement) bool {
		return m.Timestamp().Equal(ts)
	})
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// Prune removes measurements taken strictly before the cutoff.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return s.removeWhere(func(m weather.Measurement) bool {
		return m.Timestamp().Before(before)
	}), nil
}

// Len returns the number of stored measurements.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) removeWhere(match func(weather.Measurement) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if match(e.measurement) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = entry{}
	}
	s.entries = kept
	return removed
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}

var (
	_ weather.Store = (*MemoryStore)(nil)
	_ Pruner        = (*MemoryStore)(nil)
)
