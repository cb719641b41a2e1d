package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/weather"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("store unavailable")

// BreakerConfig controls when the breaker trips and how long it stays open.
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
}

// Backend is a store that can also prune; Breaker wraps one.
type Backend interface {
	weather.Store
	Pruner
}

// Breaker guards a store with a circuit breaker. While open, every call
// fails with ErrUnavailable. ErrNotFound counts as success.
type Breaker struct {
	next    Backend
	circuit *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Backend, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Breaker{next: next, circuit: cb}
}

func (b *Breaker) Add(ctx context.Context, m weather.Measurement) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.next.Add(ctx, m)
	})
	return err
}

func (b *Breaker) Fetch(ctx context.Context, ts time.Time) (weather.Measurement, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, ts)
	})
	if err != nil {
		return weather.Measurement{}, err
	}
	return result.(weather.Measurement), nil
}

func (b *Breaker) QueryRange(ctx context.Context, from, to time.Time) ([]weather.Measurement, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.next.QueryRange(ctx, from, to)
	})
	if err != nil {
		return nil, err
	}
	return result.([]weather.Measurement), nil
}

func (b *Breaker) Delete(ctx context.Context, ts time.Time) (int, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.next.Delete(ctx, ts)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (b *Breaker) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.next.Prune(ctx, before)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// State reports the breaker state, mainly for health checks.
func (b *Breaker) State() gobreaker.State {
	return b.circuit.State()
}

func (b *Breaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.circuit.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, err
}

var (
	_ weather.Store = (*Breaker)(nil)
	_ Pruner        = (*Breaker)(nil)
)
