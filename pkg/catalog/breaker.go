package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSource guards a Source with a circuit breaker so a dead database
// fails fast instead of stalling every refresh on connection timeouts.
type BreakerSource struct {
	next   Source
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// BreakerSettings tunes the circuit breaker.
type BreakerSettings struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open-state duration before half-open
	MinRequests  uint32        // requests before the failure ratio is considered
	FailureRatio float64       // ratio that trips the breaker
}

// DefaultBreakerSettings returns production defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// NewBreaker wraps next with a circuit breaker using default settings.
func NewBreaker(next Source, log *slog.Logger) *BreakerSource {
	return NewBreakerWithSettings(next, DefaultBreakerSettings(), log)
}

// NewBreakerWithSettings wraps next with a circuit breaker.
func NewBreakerWithSettings(next Source, s BreakerSettings, log *slog.Logger) *BreakerSource {
	if log == nil {
		log = slog.Default()
	}
	b := &BreakerSource{
		next:   next,
		logger: log.With("component", "catalog.breaker"),
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return b
}

// Fetch runs the wrapped Fetch through the breaker. While the breaker is open
// it returns ErrUnavailable without touching the source.
func (b *BreakerSource) Fetch(ctx context.Context) (*Snapshot, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return res.(*Snapshot), nil
}

// State returns the breaker state name (closed, half-open, open).
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}
