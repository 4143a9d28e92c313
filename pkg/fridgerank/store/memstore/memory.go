package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu          sync.RWMutex
	ingredients map[string]store.Ingredient
	recipes     map[string]store.Recipe
	recipeOrder []string
	reqs        map[string][]store.Requirement
	inventory   map[string][]store.InventoryItem
	cooked      map[string]map[string]time.Time
	profiles    map[string]store.FlavorProfile
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		ingredients: make(map[string]store.Ingredient),
		recipes:     make(map[string]store.Recipe),
		reqs:        make(map[string][]store.Requirement),
		inventory:   make(map[string][]store.InventoryItem),
		cooked:      make(map[string]map[string]time.Time),
		profiles:    make(map[string]store.FlavorProfile),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertIngredient stores or renames an ingredient.
func (s *Store) UpsertIngredient(ctx context.Context, ing store.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[ing.ID] = ing
	return nil
}

// UpsertRecipe replaces a recipe and all of its requirement rows.
func (s *Store) UpsertRecipe(ctx context.Context, r store.Recipe, reqs []store.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[r.ID]; !ok {
		s.recipeOrder = append(s.recipeOrder, r.ID)
	}
	r.Flavor = copyFlavor(r.Flavor)
	s.recipes[r.ID] = r

	rows := make([]store.Requirement, len(reqs))
	for i, req := range reqs {
		req.RecipeID = r.ID
		rows[i] = req
	}
	s.reqs[r.ID] = rows
	return nil
}

// AddInventoryItem appends one lot to the user's inventory.
func (s *Store) AddInventoryItem(ctx context.Context, item store.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[item.UserID] = append(s.inventory[item.UserID], item)
	return nil
}

// RecordCook marks a recipe as cooked by the user.
func (s *Store) RecordCook(ctx context.Context, userID, recipeID string, cookedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cooked[userID] == nil {
		s.cooked[userID] = make(map[string]time.Time)
	}
	s.cooked[userID][recipeID] = cookedAt
	return nil
}

// UpsertFlavorProfile replaces the user's taste profile.
func (s *Store) UpsertFlavorProfile(ctx context.Context, userID string, p store.FlavorProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = store.FlavorProfile(copyFlavor(p))
	return nil
}

// ValidItems returns the soonest valid expiry per ingredient.
func (s *Store) ValidItems(ctx context.Context, userID string, asOf time.Time) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked(userID, asOf), nil
}

func (s *Store) validLocked(userID string, asOf time.Time) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, item := range s.inventory[userID] {
		if !item.Valid(asOf) {
			continue
		}
		exp := store.Day(item.ExpiresOn)
		if cur, ok := out[item.IngredientID]; !ok || exp.Before(cur) {
			out[item.IngredientID] = exp
		}
	}
	return out
}

// CookedRecipeIDs returns the recipes the user has cooked.
func (s *Store) CookedRecipeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.cooked[userID]))
	for id := range s.cooked[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// FlavorProfile returns the user's profile, if any.
func (s *Store) FlavorProfile(ctx context.Context, userID string) (store.FlavorProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, false, nil
	}
	return store.FlavorProfile(copyFlavor(p)), true, nil
}

// CandidateRecipes returns recipes missing at most maxMissing non-optional
// ingredients, in insertion order.
func (s *Store) CandidateRecipes(ctx context.Context, userID string, asOf time.Time, maxMissing int) ([]store.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	have := s.validLocked(userID, asOf)
	var out []store.Candidate
	for _, id := range s.recipeOrder {
		rows := s.reqs[id]
		required, missing := 0, 0
		seen := make(map[string]struct{})
		for _, r := range rows {
			if r.Optional {
				continue
			}
			if _, dup := seen[r.IngredientID]; dup {
				continue
			}
			seen[r.IngredientID] = struct{}{}
			required++
			if _, ok := have[r.IngredientID]; !ok {
				missing++
			}
		}
		if required == 0 || missing > maxMissing {
			continue
		}

		reqs := make([]store.Requirement, len(rows))
		for i, r := range rows {
			r.Name = s.nameLocked(r.IngredientID)
			reqs[i] = r
		}
		recipe := s.recipes[id]
		recipe.Flavor = copyFlavor(recipe.Flavor)
		out = append(out, store.Candidate{Recipe: recipe, Requirements: reqs})
	}
	return out, nil
}

// UrgentItems returns valid lots expiring within windowDays, soonest first.
func (s *Store) UrgentItems(ctx context.Context, userID string, asOf time.Time, windowDays int) ([]store.UrgentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type lot struct {
		item store.InventoryItem
		days int
	}
	var lots []lot
	for _, item := range s.inventory[userID] {
		if !item.Valid(asOf) {
			continue
		}
		days := store.DaysBetween(asOf, item.ExpiresOn)
		if days > windowDays {
			continue
		}
		lots = append(lots, lot{item: item, days: days})
	}
	sort.SliceStable(lots, func(i, j int) bool { return lots[i].days < lots[j].days })

	out := make([]store.UrgentItem, len(lots))
	for i, l := range lots {
		out[i] = store.UrgentItem{
			IngredientName: s.nameLocked(l.item.IngredientID),
			DaysRemaining:  l.days,
			Quantity:       l.item.Quantity,
			Unit:           l.item.Unit,
		}
	}
	return out, nil
}

func (s *Store) nameLocked(ingredientID string) string {
	if ing, ok := s.ingredients[ingredientID]; ok && ing.DisplayName != "" {
		return ing.DisplayName
	}
	return store.UnknownIngredient
}

func copyFlavor(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
