package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/metrics"
	"github.com/i474232898/weathertracker/internal/store"
	"github.com/i474232898/weathertracker/internal/weather"
)

const (
	createMeasurementsTable = `
CREATE TABLE IF NOT EXISTS measurements (
    id BIGSERIAL PRIMARY KEY,
    ts TIMESTAMPTZ NOT NULL
)`
	createMeasurementsIndex = `
CREATE INDEX IF NOT EXISTS measurements_ts_idx ON measurements (ts)`
	createMetricsTable = `
CREATE TABLE IF NOT EXISTS metrics (
    measurement_id BIGINT NOT NULL REFERENCES measurements (id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (measurement_id, position),
    UNIQUE (measurement_id, name)
)`

	insertMeasurementSQL = `INSERT INTO measurements (ts) VALUES ($1) RETURNING id`
	insertMetricSQL      = `INSERT INTO metrics (measurement_id, position, name, value) VALUES ($1, $2, $3, $4)`

	selectByTimestampSQL = `
SELECT m.id, m.ts, x.name, x.value
FROM measurements m
LEFT JOIN metrics x ON x.measurement_id = m.id
WHERE m.ts = $1
ORDER BY m.id, x.position`
	selectRangeSQL = `
SELECT m.id, m.ts, x.name, x.value
FROM measurements m
LEFT JOIN metrics x ON x.measurement_id = m.id
WHERE m.ts >= $1 AND m.ts < $2
ORDER BY m.ts, m.id, x.position`

	deleteByTimestampSQL = `DELETE FROM measurements WHERE ts = $1`
	deleteBeforeSQL      = `DELETE FROM measurements WHERE ts < $1`
)

// Store is a weather.Store backed by Postgres.
type Store struct {
	db      *sqlx.DB
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Open connects to Postgres through the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: DSN is required")
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}

	db.SetMaxOpenConns(15)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// New wraps an open database handle.
func New(db *sqlx.DB, opts ...store.Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres store requires db instance")
	}
	logger, collector := store.ApplyOptions(opts...)
	return &Store{db: db, logger: logger, metrics: collector}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createMeasurementsTable, createMeasurementsIndex, createMetricsTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts the measurement and its metrics in a single transaction.
func (s *Store) Add(ctx context.Context, m weather.Measurement) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	if err = tx.QueryRowxContext(ctx, insertMeasurementSQL, m.Timestamp().UTC()).Scan(&id); err != nil {
		return fmt.Errorf("postgres store: insert measurement: %w", err)
	}

	for i, metric := range m.Metrics() {
		if _, err = tx.ExecContext(ctx, insertMetricSQL, id, i, metric.Name, metric.Value); err != nil {
			return fmt.Errorf("postgres store: insert metric %s: %w", metric.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// Fetch returns the measurement with the lowest id at ts.
func (s *Store) Fetch(ctx context.Context, ts time.Time) (weather.Measurement, error) {
	var rows []metricRow
	ts = weather.NormalizeTimestamp(ts)
	if err := s.db.SelectContext(ctx, &rows, selectByTimestampSQL, ts); err != nil {
		return weather.Measurement{}, fmt.Errorf("postgres store: fetch: %w", err)
	}

	measurements, err := assemble(rows)
	if err != nil {
		return weather.Measurement{}, err
	}

	switch {
	case len(measurements) == 0:
		s.logger.Warn("no measurements for timestamp", zap.Time("timestamp", ts))
		return weather.Measurement{}, store.ErrNotFound
	case len(measurements) > 1:
		s.logger.Warn("duplicate timestamp resolved to first match",
			zap.Time("timestamp", ts),
			zap.Int("matches", len(measurements)),
		)
		s.metrics.DuplicateTimestamp()
	}

	return measurements[0], nil
}

// QueryRange returns the measurements with from <= ts < to.
func (s *Store) QueryRange(ctx context.Context, from, to time.Time) ([]weather.Measurement, error) {
	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, selectRangeSQL, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("postgres store: query range: %w", err)
	}
	return assemble(rows)
}

// Delete removes the measurements at ts; metrics go with them via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, ts time.Time) (int, error) {
	n, err := s.exec(ctx, deleteByTimestampSQL, weather.NormalizeTimestamp(ts))
	if err != nil {
		return 0, fmt.Errorf("postgres store: delete: %w", err)
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

// Prune removes measurements taken before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	n, err := s.exec(ctx, deleteBeforeSQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres store: prune: %w", err)
	}
	return n, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

type metricRow struct {
	ID        int64           `db:"id"`
	Timestamp time.Time       `db:"ts"`
	Name      sql.NullString  `db:"name"`
	Value     sql.NullFloat64 `db:"value"`
}

// assemble groups joined rows (ordered by measurement id) into measurements.
func assemble(rows []metricRow) ([]weather.Measurement, error) {
	result := make([]weather.Measurement, 0)

	var (
		builder *weather.Builder
		current int64
	)
	flush := func() error {
		if builder == nil {
			return nil
		}
		m, err := builder.Build()
		if err != nil {
			return fmt.Errorf("postgres store: measurement %d: %w", current, err)
		}
		result = append(result, m)
		return nil
	}

	for _, row := range rows {
		if builder == nil || row.ID != current {
			if err := flush(); err != nil {
				return nil, err
			}
			builder = weather.NewBuilder().WithTimestamp(row.Timestamp)
			current = row.ID
		}
		if row.Name.Valid && row.Value.Valid {
			builder.WithMetric(row.Name.String, row.Value.Float64)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return result, nil
}

var (
	_ weather.Store = (*Store)(nil)
	_ store.Pruner  = (*Store)(nil)
)
