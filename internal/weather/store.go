package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no measurement exists at the requested timestamp.
var ErrNotFound = errors.New("measurement not found")

// Store is the persistence contract for measurements. Implementations compare
// timestamps as absolute instants at TimestampPrecision and hand back UTC values.
type Store interface {
	// Add persists a measurement together with all of its metrics, atomically.
	Add(ctx context.Context, m Measurement) error

	// Fetch returns the measurement recorded at exactly ts. Implementations
	// return ErrNotFound when there is none. When several measurements
	// share ts, the one added first is returned and a warning is logged.
	Fetch(ctx context.Context, ts time.Time) (Measurement, error)

	// QueryRange returns every measurement with from <= timestamp < to.
	QueryRange(ctx context.Context, from, to time.Time) ([]Measurement, error)

	// Delete removes every measurement recorded at ts and reports how many
	// were removed, or ErrNotFound when none matched.
	Delete(ctx context.Context, ts time.Time) (int, error)
}
