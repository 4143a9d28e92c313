// Package metrics exposes Prometheus collectors for the recommendation
// engine.
//
// Collectors are registered on an injected Registerer rather than the
// global default so several engines (and tests) can coexist.
//
// Metrics:
//   - fridgerank_requests_total{outcome}: Generate calls by ok / invalid / data_error
//   - fridgerank_request_duration_seconds: Generate latency
//   - fridgerank_tier_recipes: recipes returned per tier, last request
//   - fridgerank_recipes_skipped_total{reason}: recipes dropped during scoring
//   - fridgerank_fallback_total{outcome}: fallback searches by ok / error / unavailable
//   - fridgerank_fallback_breaker_state{name}: 0 closed, 1 half-open, 2 open
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records engine activity
type Collector struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	TierRecipes     *prometheus.GaugeVec
	Skipped         *prometheus.CounterVec
	Fallback        *prometheus.CounterVec
	BreakerStates   *prometheus.GaugeVec
}

// New creates collectors and registers them on reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fridgerank_requests_total",
				Help: "Recommendation requests by outcome",
			},
			[]string{"outcome"},
		),
		RequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fridgerank_request_duration_seconds",
				Help:    "Duration of recommendation requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		TierRecipes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fridgerank_tier_recipes",
				Help: "Recipes returned per tier by the most recent request",
			},
			[]string{"tier"},
		),
		Skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fridgerank_recipes_skipped_total",
				Help: "Candidate recipes dropped because they could not be scored",
			},
			[]string{"reason"},
		),
		Fallback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fridgerank_fallback_total",
				Help: "Global search fallback invocations by outcome",
			},
			[]string{"outcome"},
		),
		BreakerStates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fridgerank_fallback_breaker_state",
				Help: "Fallback circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	if reg != nil {
		reg.MustRegister(c.Requests, c.RequestDuration, c.TierRecipes, c.Skipped, c.Fallback, c.BreakerStates)
	}
	return c
}

// ObserveRequest records one finished request.
func (c *Collector) ObserveRequest(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(outcome).Inc()
	c.RequestDuration.Observe(took.Seconds())
}

// SetTierCount records how many recipes tier returned.
func (c *Collector) SetTierCount(tier int, n int) {
	if c == nil {
		return
	}
	c.TierRecipes.WithLabelValues(strconv.Itoa(tier)).Set(float64(n))
}

// RecipeSkipped counts a recipe dropped for reason.
func (c *Collector) RecipeSkipped(reason string) {
	if c == nil {
		return
	}
	c.Skipped.WithLabelValues(reason).Inc()
}

// FallbackOutcome counts a fallback search result.
func (c *Collector) FallbackOutcome(outcome string) {
	if c == nil {
		return
	}
	c.Fallback.WithLabelValues(outcome).Inc()
}

// BreakerState implements fallback.StateObserver.
func (c *Collector) BreakerState(name string, state string) {
	if c == nil {
		return
	}
	var v float64
	switch state {
	case "closed":
		v = 0
	case "half-open":
		v = 1
	case "open":
		v = 2
	default:
		v = -1
	}
	c.BreakerStates.WithLabelValues(name).Set(v)
}
