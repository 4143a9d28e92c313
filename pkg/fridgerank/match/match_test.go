package match

import (
	"encoding/json"
	"testing"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

func reqs(ids ...string) []store.Requirement {
	out := make([]store.Requirement, len(ids))
	for i, id := range ids {
		out[i] = store.Requirement{RecipeID: "r1", IngredientID: id, Name: id}
	}
	return out
}

func pantry(ids ...string) func(string) bool {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return InSet(set)
}

func TestClassifyTiers(t *testing.T) {
	tests := []struct {
		name    string
		reqs    []store.Requirement
		have    []string
		comfort bool
		want    Tier
		missing int
	}{
		{"full comfort", reqs("milk", "egg"), []string{"milk", "egg"}, true, InstantComfort, 0},
		{"full discovery", reqs("milk", "egg"), []string{"milk", "egg", "flour"}, false, InstantDiscovery, 0},
		{"one missing comfort", reqs("milk", "egg"), []string{"milk"}, true, MinorShopComfort, 1},
		{"three missing discovery", reqs("a", "b", "c", "d"), []string{"a"}, false, MinorShopDiscovery, 3},
		{"four missing excluded", reqs("a", "b", "c", "d", "e"), []string{"a"}, true, Excluded, 4},
		{"nothing in pantry", reqs("a", "b"), nil, false, MinorShopDiscovery, 2},
		{"no requirements", nil, []string{"a"}, true, Excluded, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.reqs, pantry(tt.have...), tt.comfort)
			if res.Tier != tt.want {
				t.Errorf("tier = %v, want %v", res.Tier, tt.want)
			}
			if res.MissingCount() != tt.missing {
				t.Errorf("missing = %d, want %d", res.MissingCount(), tt.missing)
			}
			if len(res.Missing) != tt.missing {
				t.Errorf("len(Missing) = %d, want %d", len(res.Missing), tt.missing)
			}
		})
	}
}

func TestClassifyIgnoresOptional(t *testing.T) {
	rs := reqs("rice", "egg")
	rs = append(rs,
		store.Requirement{RecipeID: "r1", IngredientID: "scallion", Optional: true},
		store.Requirement{RecipeID: "r1", IngredientID: "sesame", Optional: true},
	)

	res := Classify(rs, pantry("rice", "egg"), false)
	if res.Tier != InstantDiscovery {
		t.Fatalf("tier = %v, want InstantDiscovery", res.Tier)
	}
	if res.Total != 2 || res.Matched != 2 {
		t.Errorf("matched/total = %d/%d, want 2/2", res.Matched, res.Total)
	}
	if res.MatchPercentage != 1.0 {
		t.Errorf("match = %v, want 1.0", res.MatchPercentage)
	}
}

func TestClassifyDeduplicatesIngredients(t *testing.T) {
	rs := reqs("egg", "egg", "milk")
	res := Classify(rs, pantry("egg"), false)
	if res.Total != 2 {
		t.Fatalf("total = %d, want 2", res.Total)
	}
	if res.MatchPercentage != 0.5 {
		t.Errorf("match = %v, want 0.5", res.MatchPercentage)
	}
	if len(res.Missing) != 1 || res.Missing[0].IngredientID != "milk" {
		t.Errorf("missing = %+v, want [milk]", res.Missing)
	}
}

func TestClassifyProperty(t *testing.T) {
	// Exhaustive over small recipes: tier must be a pure function of
	// (match, missing, comfort).
	all := []string{"a", "b", "c", "d", "e", "f"}
	for size := 1; size <= len(all); size++ {
		for mask := 0; mask < 1<<size; mask++ {
			var have []string
			for i := 0; i < size; i++ {
				if mask&(1<<i) != 0 {
					have = append(have, all[i])
				}
			}
			for _, comfort := range []bool{true, false} {
				res := Classify(reqs(all[:size]...), pantry(have...), comfort)
				missing := size - len(have)

				var want Tier
				switch {
				case missing == 0 && comfort:
					want = InstantComfort
				case missing == 0:
					want = InstantDiscovery
				case missing <= 3 && comfort:
					want = MinorShopComfort
				case missing <= 3:
					want = MinorShopDiscovery
				default:
					want = Excluded
				}
				if res.Tier != want {
					t.Fatalf("size=%d have=%v comfort=%v: tier %v, want %v", size, have, comfort, res.Tier, want)
				}
				if res.MatchPercentage < 0 || res.MatchPercentage > 1 {
					t.Fatalf("match out of range: %v", res.MatchPercentage)
				}
			}
		}
	}
}

func TestTierNames(t *testing.T) {
	if InstantComfort.String() != "instant_comfort" {
		t.Errorf("String() = %q", InstantComfort.String())
	}
	if Tier(9).String() != "tier(9)" {
		t.Errorf("String() = %q", Tier(9).String())
	}
	if Excluded.Valid() || Tier(6).Valid() {
		t.Error("Excluded and 6 must not be valid")
	}
	for _, tier := range Tiers {
		if !tier.Valid() {
			t.Errorf("%v should be valid", tier)
		}
	}
}

func TestTierJSONKeys(t *testing.T) {
	data, err := json.Marshal(map[Tier]int{InstantComfort: 1, GlobalSearch: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `{"1":1,"5":0}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}

	data, err = json.Marshal(struct {
		Tier Tier `json:"tier"`
	}{MinorShopComfort})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `{"tier":3}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}
