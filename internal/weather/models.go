package weather

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrDuplicateMetric is returned by Build when a metric name was added twice.
	ErrDuplicateMetric = errors.New("duplicate metric")
	// ErrEmptyMetricName is returned by Build when a metric has no name.
	ErrEmptyMetricName = errors.New("metric name must not be empty")
	// ErrInvalidMetricValue is returned by Build for NaN or infinite values.
	ErrInvalidMetricValue = errors.New("metric value must be a finite number")
	// ErrMissingTimestamp is returned by Build when no timestamp was set.
	ErrMissingTimestamp = errors.New("measurement timestamp is required")
)

// TimestampPrecision is the resolution measurements are stored and addressed at.
const TimestampPrecision = time.Millisecond

// NormalizeTimestamp converts ts to the canonical form used as a measurement key:
// UTC, truncated to TimestampPrecision.
func NormalizeTimestamp(ts time.Time) time.Time {
	return ts.UTC().Truncate(TimestampPrecision)
}

// Metric is a single named value inside a Measurement.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Measurement is a timestamped set of metric values.
// The zero value is an empty measurement; use a Builder to create one.
type Measurement struct {
	timestamp time.Time // normalized, see NormalizeTimestamp
	metrics   []Metric
	index     map[string]int
}

// Timestamp returns the instant the measurement was taken, in UTC.
func (m Measurement) Timestamp() time.Time {
	return m.timestamp
}

// Metric returns the value recorded for name and whether it is present.
func (m Measurement) Metric(name string) (float64, bool) {
	i, ok := m.index[name]
	if !ok {
		return 0, false
	}
	return m.metrics[i].Value, true
}

// Metrics returns a copy of the metrics in insertion order.
func (m Measurement) Metrics() []Metric {
	out := make([]Metric, len(m.metrics))
	copy(out, m.metrics)
	return out
}

// Names returns the metric names in insertion order.
func (m Measurement) Names() []string {
	names := make([]string, len(m.metrics))
	for i, metric := range m.metrics {
		names[i] = metric.Name
	}
	return names
}

// Len returns the number of metrics.
func (m Measurement) Len() int {
	return len(m.metrics)
}

func (m Measurement) String() string {
	var b strings.Builder
	b.WriteString(m.timestamp.Format(time.RFC3339Nano))
	b.WriteString(" {")
	for i, metric := range m.metrics {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%g", metric.Name, metric.Value)
	}
	b.WriteString("}")
	return b.String()
}

// Builder assembles a Measurement. Timestamp is set once, metrics are added
// incrementally, and Build validates and freezes the result.
type Builder struct {
	timestamp time.Time
	metrics   []Metric
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithTimestamp sets the measurement instant, normalized with NormalizeTimestamp.
func (b *Builder) WithTimestamp(ts time.Time) *Builder {
	b.timestamp = NormalizeTimestamp(ts)
	return b
}

// WithMetric appends a metric. Duplicates are reported by Build.
func (b *Builder) WithMetric(name string, value float64) *Builder {
	b.metrics = append(b.metrics, Metric{Name: name, Value: value})
	return b
}

// Build validates the accumulated state and returns an immutable Measurement.
// The builder can keep being used afterwards without affecting the result.
func (b *Builder) Build() (Measurement, error) {
	if b.timestamp.IsZero() {
		return Measurement{}, ErrMissingTimestamp
	}

	metrics := make([]Metric, len(b.metrics))
	index := make(map[string]int, len(b.metrics))
	for i, metric := range b.metrics {
		if metric.Name == "" {
			return Measurement{}, ErrEmptyMetricName
		}
		if math.IsNaN(metric.Value) || math.IsInf(metric.Value, 0) {
			return Measurement{}, fmt.Errorf("%w: %s", ErrInvalidMetricValue, metric.Name)
		}
		if _, exists := index[metric.Name]; exists {
			return Measurement{}, fmt.Errorf("%w: %s", ErrDuplicateMetric, metric.Name)
		}
		index[metric.Name] = i
		metrics[i] = metric
	}

	return Measurement{
		timestamp: b.timestamp,
		metrics:   metrics,
		index:     index,
	}, nil
}
