package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/metrics"
	"github.com/i474232898/weathertracker/internal/weather"
)

// ErrNoReadings is returned when every provider failed.
var ErrNoReadings = errors.New("no successful provider readings")

// Location identifies the place whose conditions are recorded. Providers use
// either the city/country pair or the coordinates.
type Location struct {
	City    string
	Country string
	Lat     *float64
	Lon     *float64
}

// Query returns the "city,country" form accepted by the providers.
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + "," + l.Country
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// IsZero reports whether neither a city nor coordinates are set.
func (l Location) IsZero() bool {
	return l.City == "" && !l.HasCoordinates()
}

func (l Location) String() string {
	if l.City == "" && l.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *l.Lat, *l.Lon)
	}
	return l.Query()
}

// Provider abstracts a live weather data source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (weather.Measurement, error)
}

// Recorder is the part of weather.Service the collector needs.
type Recorder interface {
	Add(ctx context.Context, m weather.Measurement) error
}

// Collector polls providers and records one merged measurement per run.
type Collector struct {
	recorder  Recorder
	providers []Provider
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewCollector creates a Collector. logger and collector may be nil.
func NewCollector(recorder Recorder, providers []Provider, logger *zap.Logger, collector *metrics.Collector) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		recorder:  recorder,
		providers: providers,
		logger:    logger,
		metrics:   collector,
	}
}

// Collect fetches from all providers concurrently, merges the successful
// readings and records the result.
func (c *Collector) Collect(ctx context.Context, loc Location) (weather.Measurement, error) {
	if len(c.providers) == 0 {
		return weather.Measurement{}, errors.New("no weather providers configured")
	}

	var (
		wg       sync.WaitGroup
		readings = make([]*weather.Measurement, len(c.providers))
	)

	for i, p := range c.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			m, err := p.Fetch(ctx, loc)
			c.metrics.IngestReading(p.Name(), err == nil)
			if err != nil {
				// Log and continue; partial success still records a measurement.
				c.logger.Warn("provider fetch failed",
					zap.String("provider", p.Name()),
					zap.Stringer("location", loc),
					zap.Error(err),
				)
				return
			}
			readings[i] = &m
		}(i, p)
	}
	wg.Wait()

	successful := make([]weather.Measurement, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			successful = append(successful, *r)
		}
	}
	if len(successful) == 0 {
		return weather.Measurement{}, fmt.Errorf("%w for %s", ErrNoReadings, loc)
	}

	merged, err := MergeReadings(successful)
	if err != nil {
		return weather.Measurement{}, err
	}

	if err := c.recorder.Add(ctx, merged); err != nil {
		return weather.Measurement{}, fmt.Errorf("record measurement: %w", err)
	}

	c.logger.Info("recorded provider measurement",
		zap.Stringer("location", loc),
		zap.Int("providers", len(successful)),
		zap.Stringer("measurement", merged),
	)
	return merged, nil
}

// MergeReadings combines provider readings into one measurement. The timestamp
// is the newest reading's; each metric is the average across the readings that
// report it, in first-seen order.
func MergeReadings(readings []weather.Measurement) (weather.Measurement, error) {
	if len(readings) == 0 {
		return weather.Measurement{}, ErrNoReadings
	}

	var (
		newest time.Time
		names  []string
		seen   = make(map[string]struct{})
	)
	for _, r := range readings {
		if r.Timestamp().After(newest) {
			newest = r.Timestamp()
		}
		for _, name := range r.Names() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	averages, err := weather.Analyze(readings, names, []weather.Statistic{weather.StatisticAverage})
	if err != nil {
		return weather.Measurement{}, err
	}

	b := weather.NewBuilder().WithTimestamp(newest)
	for _, avg := range averages {
		b.WithMetric(avg.Metric, avg.Value)
	}
	return b.Build()
}
