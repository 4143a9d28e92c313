package rank

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

// Axes is the fixed flavor axis order shared by recipes, profiles and the
// fallback query vector.
var Axes = [6]string{"sweet", "salty", "sour", "bitter", "umami", "spicy"}

const (
	// NeutralAxis is used for any axis missing from a vector.
	NeutralAxis = 0.5
	// DefaultHorizonDays is the urgency horizon H.
	DefaultHorizonDays = 7

	familiarComfort   = 1.0
	familiarDiscovery = 0.2
)

// ErrMalformedFlavor marks a recipe flavor vector that cannot be scored.
var ErrMalformedFlavor = errors.New("malformed flavor vector")

// Weights defines the scoring weights
type Weights struct {
	Expiry   float64 // expiry urgency
	Flavor   float64 // flavor affinity
	Familiar float64 // cook-history familiarity
}

// DefaultWeights returns 0.45 / 0.35 / 0.20.
func DefaultWeights() Weights {
	return Weights{Expiry: 0.45, Flavor: 0.35, Familiar: 0.20}
}

// Scorer computes composite relevance scores
type Scorer struct {
	weights     Weights
	horizonDays int
}

// NewScorer creates a new scorer with the given weights and urgency horizon.
// A non-positive horizon falls back to DefaultHorizonDays.
func NewScorer(w Weights, horizonDays int) *Scorer {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Scorer{
		weights:     w,
		horizonDays: horizonDays,
	}
}

// Weights returns the scorer's weights.
func (s *Scorer) Weights() Weights { return s.weights }

// Candidate is the scoring input for one classified recipe
type Candidate struct {
	IngredientIDs []string // non-optional ingredient ids
	Flavor        map[string]float64
	Comfort       bool
}

// Breakdown provides detailed scoring information
type Breakdown struct {
	ExpiryUrgency  float64
	FlavorAffinity float64
	Familiarity    float64
	Relevance      float64
}

// Score computes every sub-score and the composite relevance.
//
// relevance = clamp(we·urgency + wf·affinity + wr·familiarity, 0, 1), rounded to 3dp
func (s *Scorer) Score(c Candidate, profile store.FlavorProfile, inventory map[string]time.Time, today time.Time) (Breakdown, error) {
	if err := ValidateFlavor(c.Flavor); err != nil {
		return Breakdown{}, err
	}

	urgency := ExpiryUrgency(c.IngredientIDs, inventory, today, s.horizonDays)
	affinity := FlavorAffinity(c.Flavor, profile)

	return Breakdown{
		ExpiryUrgency:  urgency,
		FlavorAffinity: affinity,
		Familiarity:    familiarity(c.Comfort),
		Relevance:      s.Relevance(urgency, affinity, c.Comfort),
	}, nil
}

// Relevance combines pre-computed sub-scores.
func (s *Scorer) Relevance(urgency, affinity float64, comfort bool) float64 {
	score := s.weights.Expiry*urgency +
		s.weights.Flavor*affinity +
		s.weights.Familiar*familiarity(comfort)
	return Round3(Clamp01(score))
}

func familiarity(comfort bool) float64 {
	if comfort {
		return familiarComfort
	}
	return familiarDiscovery
}

// ExpiryUrgency averages per-ingredient urgency over ingredients present in
// inventory. Items expiring today score 1.0, items horizonDays or more out
// score 0.0. Missing ingredients are skipped; with none present the result is 0.
func ExpiryUrgency(ingredientIDs []string, inventory map[string]time.Time, today time.Time, horizonDays int) float64 {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	sum, n := 0.0, 0
	for _, id := range ingredientIDs {
		expiry, ok := inventory[id]
		if !ok {
			continue
		}
		daysLeft := store.DaysBetween(today, expiry)
		sum += Clamp01(1 - float64(daysLeft)/float64(horizonDays))
		n++
	}
	if n == 0 {
		return 0
	}
	return Clamp01(sum / float64(n))
}

// FlavorAffinity is the cosine similarity between recipe and profile over
// Axes. Missing axes count as NeutralAxis; a zero-magnitude side yields 0.5.
func FlavorAffinity(recipe map[string]float64, profile store.FlavorProfile) float64 {
	r := vector(recipe)
	u := vector(profile)

	var dot, normR, normU float64
	for i := range r {
		dot += r[i] * u[i]
		normR += r[i] * r[i]
		normU += u[i] * u[i]
	}
	norm := math.Sqrt(normR) * math.Sqrt(normU)
	if norm == 0 {
		return NeutralAxis
	}
	return Clamp01(dot / norm)
}

// QueryVector converts a profile into the fixed-order vector used for
// similarity search.
func QueryVector(profile store.FlavorProfile) [6]float64 {
	return vector(profile)
}

// NeutralProfile returns a profile with every axis at NeutralAxis.
func NeutralProfile() store.FlavorProfile {
	p := make(store.FlavorProfile, len(Axes))
	for _, axis := range Axes {
		p[axis] = NeutralAxis
	}
	return p
}

// ValidateFlavor rejects a vector with no known axes, or with any axis value
// that is NaN, infinite or outside [0,1].
func ValidateFlavor(v map[string]float64) error {
	present := 0
	for _, axis := range Axes {
		val, ok := v[axis]
		if !ok {
			continue
		}
		present++
		if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 || val > 1 {
			return fmt.Errorf("%w: axis %s = %v", ErrMalformedFlavor, axis, val)
		}
	}
	if present == 0 {
		return fmt.Errorf("%w: no flavor axes", ErrMalformedFlavor)
	}
	return nil
}

func vector(m map[string]float64) [6]float64 {
	var out [6]float64
	for i, axis := range Axes {
		val, ok := m[axis]
		if !ok || math.IsNaN(val) {
			val = NeutralAxis
		}
		out[i] = val
	}
	return out
}

// Round3 rounds to 3 decimal places.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// Round2 rounds to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Clamp01 bounds x to [0,1]; NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
