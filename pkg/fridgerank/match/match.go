package match

import (
	"strconv"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

// Tier is a relevance bucket. Lower tiers rank higher.
type Tier int

const (
	// Excluded recipes do not surface in tiers 1-4.
	Excluded Tier = iota
	InstantComfort
	InstantDiscovery
	MinorShopComfort
	MinorShopDiscovery
	GlobalSearch
)

// MaxMissing is the most non-optional ingredients a recipe may lack and
// still be classified.
const MaxMissing = 3

// FallbackThreshold is the tier 1-4 total below which global search runs.
const FallbackThreshold = 5

// Tiers lists every non-excluded tier in rank order.
var Tiers = [...]Tier{InstantComfort, InstantDiscovery, MinorShopComfort, MinorShopDiscovery, GlobalSearch}

var tierNames = map[Tier]string{
	Excluded:           "excluded",
	InstantComfort:     "instant_comfort",
	InstantDiscovery:   "instant_discovery",
	MinorShopComfort:   "minor_shop_comfort",
	MinorShopDiscovery: "minor_shop_discovery",
	GlobalSearch:       "global_search",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "tier(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is one of the five response tiers.
func (t Tier) Valid() bool {
	return t >= InstantComfort && t <= GlobalSearch
}

// MarshalJSON encodes the tier as a JSON number.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(t))), nil
}

// MarshalText encodes the tier as its number so it can key a JSON object.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(int(t))), nil
}

// Result is the classification of one recipe
type Result struct {
	Tier            Tier
	Matched         int
	Total           int
	Missing         []store.Requirement
	MatchPercentage float64
}

// MissingCount is Total - Matched.
func (r Result) MissingCount() int {
	return r.Total - r.Matched
}

// Required returns the non-optional requirements, one per ingredient, in
// input order.
func Required(reqs []store.Requirement) []store.Requirement {
	seen := make(map[string]struct{}, len(reqs))
	out := make([]store.Requirement, 0, len(reqs))
	for _, r := range reqs {
		if r.Optional {
			continue
		}
		if _, dup := seen[r.IngredientID]; dup {
			continue
		}
		seen[r.IngredientID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Classify computes ingredient coverage and assigns a tier.
//
// Rules, first match wins:
//
//	full coverage, cooked before  -> InstantComfort
//	full coverage, never cooked   -> InstantDiscovery
//	1-3 missing, cooked before    -> MinorShopComfort
//	1-3 missing, never cooked     -> MinorShopDiscovery
//	otherwise                     -> Excluded
//
// A recipe with no non-optional requirements is Excluded.
func Classify(reqs []store.Requirement, available func(ingredientID string) bool, comfort bool) Result {
	required := Required(reqs)

	res := Result{Total: len(required)}
	for _, r := range required {
		if available(r.IngredientID) {
			res.Matched++
			continue
		}
		res.Missing = append(res.Missing, r)
	}

	if res.Total == 0 {
		return res
	}
	res.MatchPercentage = float64(res.Matched) / float64(res.Total)
	res.Tier = tierFor(res.MissingCount(), comfort)
	return res
}

func tierFor(missing int, comfort bool) Tier {
	switch {
	case missing == 0 && comfort:
		return InstantComfort
	case missing == 0:
		return InstantDiscovery
	case missing <= MaxMissing && comfort:
		return MinorShopComfort
	case missing <= MaxMissing:
		return MinorShopDiscovery
	default:
		return Excluded
	}
}

// InSet adapts an ingredient-id set to the available func.
func InSet[V any](set map[string]V) func(string) bool {
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}
