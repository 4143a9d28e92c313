package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit around a Searcher
type BreakerSettings struct {
	Name        string
	MaxRequests uint32        // allowed through while half-open
	Interval    time.Duration // closed-state count reset period
	Timeout     time.Duration // open -> half-open delay
	MinRequests uint32        // requests needed before the ratio is considered
	TripRatio   float64       // failure ratio that opens the circuit
}

// DefaultBreakerSettings returns 3 half-open requests, a 1m window, a 30s
// open period and a 60% trip ratio over at least 5 requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "fallback-search",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		MinRequests: 5,
		TripRatio:   0.6,
	}
}

// StateObserver receives circuit state changes. metrics.Collector
// satisfies it.
type StateObserver interface {
	BreakerState(name string, state string)
}

// Breaker wraps a Searcher in a circuit breaker. Rejected calls return an
// error wrapping ErrUnavailable.
type Breaker struct {
	next Searcher
	cb   *gobreaker.CircuitBreaker[[]Hit]
	name string
}

// NewBreaker wraps next. observer may be nil.
func NewBreaker(next Searcher, s BreakerSettings, logger zerolog.Logger, observer StateObserver) *Breaker {
	if s.Name == "" {
		s.Name = DefaultBreakerSettings().Name
	}
	log := logger.With().Str("component", "breaker").Str("breaker", s.Name).Logger()

	if observer != nil {
		observer.BreakerState(s.Name, StateName(gobreaker.StateClosed))
	}

	cb := gobreaker.NewCircuitBreaker[[]Hit](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.TripRatio
		},
		// Cancellation is the caller giving up, not the searcher failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().
				Str("from", StateName(from)).
				Str("to", StateName(to)).
				Msg("circuit state transition")
			if observer != nil {
				observer.BreakerState(name, StateName(to))
			}
		},
	})

	return &Breaker{next: next, cb: cb, name: s.Name}
}

// Search implements Searcher.
func (b *Breaker) Search(ctx context.Context, q Query) ([]Hit, error) {
	hits, err := b.cb.Execute(func() ([]Hit, error) {
		return b.next.Search(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.name, err)
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// State returns the current circuit state name.
func (b *Breaker) State() string {
	return StateName(b.cb.State())
}

// StateName maps a gobreaker state to closed, half-open or open.
func StateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
