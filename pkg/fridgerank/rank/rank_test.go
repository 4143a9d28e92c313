package rank

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

var today = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func daysOut(n int) time.Time {
	return today.AddDate(0, 0, n)
}

func TestExpiryUrgencyExample(t *testing.T) {
	inv := map[string]time.Time{
		"milk":   daysOut(1),
		"carrot": daysOut(5),
	}
	got := ExpiryUrgency([]string{"milk", "carrot"}, inv, today, 7)

	want := ((1 - 1.0/7) + (1 - 5.0/7)) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("urgency = %f, want %f", got, want)
	}
	if Round3(got) != 0.571 {
		t.Errorf("rounded urgency = %v, want 0.571", Round3(got))
	}
}

func TestExpiryUrgencyEdges(t *testing.T) {
	inv := map[string]time.Time{
		"today":   daysOut(0),
		"overdue": daysOut(-2),
		"horizon": daysOut(7),
		"far":     daysOut(30),
	}

	tests := []struct {
		name string
		ids  []string
		want float64
	}{
		{"expires today", []string{"today"}, 1.0},
		{"already overdue", []string{"overdue"}, 1.0},
		{"at horizon", []string{"horizon"}, 0.0},
		{"beyond horizon", []string{"far"}, 0.0},
		{"missing skipped", []string{"today", "not-in-pantry"}, 1.0},
		{"nothing present", []string{"a", "b"}, 0.0},
		{"empty recipe", nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpiryUrgency(tt.ids, inv, today, 7); got != tt.want {
				t.Errorf("urgency = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpiryUrgencyHorizonFallback(t *testing.T) {
	inv := map[string]time.Time{"x": daysOut(1)}
	if a, b := ExpiryUrgency([]string{"x"}, inv, today, 0), ExpiryUrgency([]string{"x"}, inv, today, 7); a != b {
		t.Errorf("horizon 0 should behave like 7: %v vs %v", a, b)
	}
}

func TestFlavorAffinityIdentical(t *testing.T) {
	got := FlavorAffinity(map[string]float64(NeutralProfile()), NeutralProfile())
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("affinity = %v, want 1.0", got)
	}
}

func TestFlavorAffinityMissingAxes(t *testing.T) {
	// A partial vector is padded with 0.5, so {sweet:0.5} equals neutral.
	got := FlavorAffinity(map[string]float64{"sweet": 0.5}, nil)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("affinity = %v, want 1.0", got)
	}
}

func TestFlavorAffinityZeroMagnitude(t *testing.T) {
	zero := map[string]float64{}
	for _, axis := range Axes {
		zero[axis] = 0
	}
	if got := FlavorAffinity(zero, NeutralProfile()); got != 0.5 {
		t.Errorf("recipe zero: affinity = %v, want 0.5", got)
	}
	if got := FlavorAffinity(map[string]float64{"sweet": 1}, store.FlavorProfile(zero)); got != 0.5 {
		t.Errorf("profile zero: affinity = %v, want 0.5", got)
	}
}

func TestFlavorAffinityOrthogonal(t *testing.T) {
	r := map[string]float64{"sweet": 1, "salty": 0, "sour": 0, "bitter": 0, "umami": 0, "spicy": 0}
	p := store.FlavorProfile{"sweet": 0, "salty": 0, "sour": 0, "bitter": 0, "umami": 0, "spicy": 1}
	if got := FlavorAffinity(r, p); got != 0 {
		t.Errorf("affinity = %v, want 0", got)
	}
}

func TestRelevanceExample(t *testing.T) {
	s := NewScorer(DefaultWeights(), 7)
	if got := s.Relevance(4.0/7, 1.0, true); got != 0.807 {
		t.Errorf("relevance = %v, want 0.807", got)
	}
	// discovery familiarity is 0.2
	if got := s.Relevance(0, 0, false); got != 0.04 {
		t.Errorf("relevance = %v, want 0.04", got)
	}
}

func TestRelevanceClamped(t *testing.T) {
	s := NewScorer(Weights{Expiry: 2, Flavor: 2, Familiar: 2}, 7)
	if got := s.Relevance(1, 1, true); got != 1 {
		t.Errorf("relevance = %v, want 1", got)
	}
	s = NewScorer(Weights{Expiry: -1}, 7)
	if got := s.Relevance(1, 0, false); got != 0 {
		t.Errorf("relevance = %v, want 0", got)
	}
}

func TestScoreBreakdown(t *testing.T) {
	s := NewScorer(DefaultWeights(), 7)
	inv := map[string]time.Time{"milk": daysOut(1), "carrot": daysOut(5)}

	b, err := s.Score(Candidate{
		IngredientIDs: []string{"milk", "carrot"},
		Flavor:        NeutralProfile(),
		Comfort:       true,
	}, nil, inv, today)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if b.Familiarity != 1 {
		t.Errorf("familiarity = %v, want 1", b.Familiarity)
	}
	if Round3(b.ExpiryUrgency) != 0.571 {
		t.Errorf("urgency = %v", b.ExpiryUrgency)
	}
	// full-precision urgency: 0.45*0.5714.. + 0.35 + 0.2 = 0.807
	if b.Relevance != 0.807 {
		t.Errorf("relevance = %v, want 0.807", b.Relevance)
	}
}

func TestScoreRejectsMalformedFlavor(t *testing.T) {
	s := NewScorer(DefaultWeights(), 7)
	tests := []struct {
		name   string
		flavor map[string]float64
	}{
		{"no axes", map[string]float64{}},
		{"unknown axes only", map[string]float64{"crunchy": 0.4}},
		{"nan", map[string]float64{"sweet": math.NaN()}},
		{"inf", map[string]float64{"salty": math.Inf(1)}},
		{"out of range", map[string]float64{"sour": 1.5}},
		{"negative", map[string]float64{"umami": -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Score(Candidate{Flavor: tt.flavor}, nil, nil, today)
			if !errors.Is(err, ErrMalformedFlavor) {
				t.Errorf("err = %v, want ErrMalformedFlavor", err)
			}
		})
	}
}

func TestScoresBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewScorer(DefaultWeights(), 7)

	for i := 0; i < 500; i++ {
		flavor := map[string]float64{}
		profile := store.FlavorProfile{}
		for _, axis := range Axes {
			if rng.Intn(4) > 0 {
				flavor[axis] = rng.Float64()
			}
			if rng.Intn(4) > 0 {
				profile[axis] = rng.Float64()
			}
		}
		if len(flavor) == 0 {
			flavor["sweet"] = 0
		}
		inv := map[string]time.Time{}
		ids := []string{}
		for j := 0; j < 5; j++ {
			id := string(rune('a' + j))
			ids = append(ids, id)
			if rng.Intn(2) == 0 {
				inv[id] = daysOut(rng.Intn(20) - 5)
			}
		}

		b, err := s.Score(Candidate{IngredientIDs: ids, Flavor: flavor, Comfort: rng.Intn(2) == 0}, profile, inv, today)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		for name, v := range map[string]float64{
			"urgency":   b.ExpiryUrgency,
			"affinity":  b.FlavorAffinity,
			"relevance": b.Relevance,
		} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("%s out of range: %v", name, v)
			}
		}
	}
}

func TestQueryVector(t *testing.T) {
	v := QueryVector(store.FlavorProfile{"sweet": 0.9, "spicy": 0.1})
	want := [6]float64{0.9, 0.5, 0.5, 0.5, 0.5, 0.1}
	if v != want {
		t.Errorf("vector = %v, want %v", v, want)
	}
}

func TestRounding(t *testing.T) {
	if Round3(0.80714) != 0.807 {
		t.Errorf("Round3 = %v", Round3(0.80714))
	}
	if Round2(0.666) != 0.67 {
		t.Errorf("Round2 = %v", Round2(0.666))
	}
	if Clamp01(math.NaN()) != 0 || Clamp01(2) != 1 || Clamp01(-1) != 0 {
		t.Error("Clamp01 bounds")
	}
}
