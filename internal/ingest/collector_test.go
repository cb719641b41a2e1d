package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weathertracker/internal/weather"
)

type fakeProvider struct {
	name    string
	reading weather.Measurement
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(_ context.Context, _ Location) (weather.Measurement, error) {
	return f.reading, f.err
}

type recorder struct {
	mu    sync.Mutex
	added []weather.Measurement
	err   error
}

func (r *recorder) Add(_ context.Context, m weather.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.added = append(r.added, m)
	return nil
}

var berlin = Location{City: "Berlin", Country: "DE"}

func reading(t *testing.T, ts time.Time, kv map[string]float64, order ...string) weather.Measurement {
	t.Helper()
	b := weather.NewBuilder().WithTimestamp(ts)
	for _, name := range order {
		b.WithMetric(name, kv[name])
	}
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestCollectMergesProviderReadings(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := reading(t, t0, map[string]float64{"temperature": 10, "humidity": 80}, "temperature", "humidity")
	b := reading(t, t0.Add(5*time.Minute), map[string]float64{"temperature": 11, "windSpeed": 3}, "temperature", "windSpeed")

	rec := &recorder{}
	c := NewCollector(rec, []Provider{
		&fakeProvider{name: "a", reading: a},
		&fakeProvider{name: "b", reading: b},
	}, nil, nil)

	got, err := c.Collect(context.Background(), berlin)
	require.NoError(t, err)

	assert.True(t, got.Timestamp().Equal(t0.Add(5*time.Minute)))
	assert.Equal(t, []string{"temperature", "humidity", "windSpeed"}, got.Names())
	temp, _ := got.Metric("temperature")
	assert.Equal(t, 10.5, temp)

	require.Len(t, rec.added, 1)
	assert.Equal(t, got, rec.added[0])
}

func TestCollectToleratesPartialFailure(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ok := reading(t, t0, map[string]float64{"temperature": 4}, "temperature")

	rec := &recorder{}
	c := NewCollector(rec, []Provider{
		&fakeProvider{name: "down", err: errors.New("timeout")},
		&fakeProvider{name: "up", reading: ok},
	}, nil, nil)

	got, err := c.Collect(context.Background(), berlin)
	require.NoError(t, err)
	v, _ := got.Metric("temperature")
	assert.Equal(t, 4.0, v)
	assert.Len(t, rec.added, 1)
}

func TestCollectFailsWhenEveryProviderFails(t *testing.T) {
	rec := &recorder{}
	c := NewCollector(rec, []Provider{
		&fakeProvider{name: "a", err: errors.New("a")},
		&fakeProvider{name: "b", err: errors.New("b")},
	}, nil, nil)

	_, err := c.Collect(context.Background(), berlin)
	assert.ErrorIs(t, err, ErrNoReadings)
	assert.Empty(t, rec.added)
}

func TestCollectReportsRecorderError(t *testing.T) {
	boom := errors.New("store down")
	ok := reading(t, time.Now(), map[string]float64{"temperature": 1}, "temperature")

	c := NewCollector(&recorder{err: boom}, []Provider{&fakeProvider{name: "a", reading: ok}}, nil, nil)

	_, err := c.Collect(context.Background(), berlin)
	assert.ErrorIs(t, err, boom)
}

func TestCollectWithoutProviders(t *testing.T) {
	c := NewCollector(&recorder{}, nil, nil, nil)
	_, err := c.Collect(context.Background(), berlin)
	assert.Error(t, err)
}

func TestMergeReadingsEmpty(t *testing.T) {
	_, err := MergeReadings(nil)
	assert.ErrorIs(t, err, ErrNoReadings)
}

func TestLocationQuery(t *testing.T) {
	assert.Equal(t, "Berlin,DE", berlin.Query())
	assert.Equal(t, "Oslo", Location{City: "Oslo"}.Query())
}

func TestLocationString(t *testing.T) {
	lat, lon := 52.52, 13.405
	assert.Equal(t, "52.5200,13.4050", Location{Lat: &lat, Lon: &lon}.String())
	assert.Equal(t, "Berlin,DE", Location{City: "Berlin", Country: "DE", Lat: &lat, Lon: &lon}.String())
	assert.True(t, Location{}.IsZero())
	assert.False(t, Location{Lat: &lat, Lon: &lon}.IsZero())
}
