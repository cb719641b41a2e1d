package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weathertracker"

// Collector groups the prometheus instruments used across the service.
// All methods are safe on a nil receiver so components can run without metrics.
type Collector struct {
	measurementsAdded   prometheus.Counter
	duplicateTimestamps prometheus.Counter
	storeErrors         *prometheus.CounterVec
	analyzeDuration     prometheus.Histogram
	analyzeResults      prometheus.Counter
	ingestReadings      *prometheus.CounterVec
	pruned              prometheus.Counter
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		measurementsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_added_total",
			Help:      "Measurements persisted through the service.",
		}),
		duplicateTimestamps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_timestamps_total",
			Help:      "Fetches that matched more than one measurement.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store operations that failed, by operation.",
		}, []string{"op"}),
		analyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyze_duration_seconds",
			Help:      "Time spent computing aggregate statistics.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		analyzeResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_results_total",
			Help:      "Aggregate results produced.",
		}),
		ingestReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_readings_total",
			Help:      "Provider readings, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_pruned_total",
			Help:      "Measurements removed by retention.",
		}),
	}

	collectors := []prometheus.Collector{
		c.measurementsAdded,
		c.duplicateTimestamps,
		c.storeErrors,
		c.analyzeDuration,
		c.analyzeResults,
		c.ingestReadings,
		c.pruned,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collector) MeasurementAdded() {
	if c == nil {
		return
	}
	c.measurementsAdded.Inc()
}

func (c *Collector) DuplicateTimestamp() {
	if c == nil {
		return
	}
	c.duplicateTimestamps.Inc()
}

func (c *Collector) StoreError(op string) {
	if c == nil {
		return
	}
	c.storeErrors.WithLabelValues(op).Inc()
}

// ObserveAnalyze records one Analyze call.
func (c *Collector) ObserveAnalyze(elapsed time.Duration, results int) {
	if c == nil {
		return
	}
	c.analyzeDuration.Observe(elapsed.Seconds())
	c.analyzeResults.Add(float64(results))
}

func (c *Collector) IngestReading(provider string, ok bool) {
	if c == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.ingestReadings.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) Pruned(n int) {
	if c == nil {
		return
	}
	c.pruned.Add(float64(n))
}
