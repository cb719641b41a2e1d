package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weathertracker/internal/weather"
)

var errBackendDown = errors.New("backend down")

// failingBackend fails every call with err until healed.
type failingBackend struct {
	*MemoryStore
	err   error
	calls int
}

func (f *failingBackend) Add(ctx context.Context, m weather.Measurement) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return f.MemoryStore.Add(ctx, m)
}

func (f *failingBackend) Fetch(ctx context.Context, ts time.Time) (weather.Measurement, error) {
	f.calls++
	if f.err != nil {
		return weather.Measurement{}, f.err
	}
	return f.MemoryStore.Fetch(ctx, ts)
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	backend := &failingBackend{MemoryStore: NewMemoryStore(0), err: errBackendDown}
	b := NewBreaker(backend, BreakerConfig{MaxFailures: 3, Timeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := b.Add(ctx, measurement(t, base, 1))
		assert.ErrorIs(t, err, errBackendDown)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Add(ctx, measurement(t, base, 1))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, backend.calls)

	_, err = b.Fetch(ctx, base)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	b := NewBreaker(NewMemoryStore(0), BreakerConfig{MaxFailures: 1, Timeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.Fetch(ctx, base)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err := b.Delete(ctx, base)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesResultsThrough(t *testing.T) {
	b := NewBreaker(NewMemoryStore(0), BreakerConfig{}, nil)
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, measurement(t, base, 10)))
	require.NoError(t, b.Add(ctx, measurement(t, base.Add(time.Hour), 20)))

	got, err := b.Fetch(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 10.0, temperature(got))

	all, err := b.QueryRange(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := b.Prune(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = b.Delete(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
