// Package fixture loads YAML seed datasets and writes them into any
// store.Writer. Used by the bootstrap command and by tests.
package fixture

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/fridgerank/pkg/fridgerank/fallback"
	"github.com/cognicore/fridgerank/pkg/fridgerank/internalerr"
	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

// Dataset is a complete seed file
type Dataset struct {
	Ingredients []Ingredient  `yaml:"ingredients"`
	Recipes     []Recipe      `yaml:"recipes"`
	Users       []User        `yaml:"users"`
	Similar     []fallbackHit `yaml:"similar"`
}

// Ingredient is a canonical ingredient entry
type Ingredient struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Recipe is a recipe with inline requirements
type Recipe struct {
	ID              string             `yaml:"id"`
	Title           string             `yaml:"title"`
	Cuisine         string             `yaml:"cuisine"`
	PrepTimeMinutes int                `yaml:"prep_time_minutes"`
	ImageURL        string             `yaml:"image_url"`
	Flavor          map[string]float64 `yaml:"flavor"`
	Ingredients     []RecipeIngredient `yaml:"ingredients"`
}

// RecipeIngredient is one requirement row
type RecipeIngredient struct {
	ID       string `yaml:"id"`
	Optional bool   `yaml:"optional"`
}

// User holds one user's kitchen state
type User struct {
	ID        string             `yaml:"id"`
	Profile   map[string]float64 `yaml:"profile"`
	Cooked    []string           `yaml:"cooked"`
	Inventory []Lot              `yaml:"inventory"`
}

// Lot is an inventory entry. ExpiresOn (YYYY-MM-DD) wins over
// ExpiresInDays, which is relative to the apply date.
type Lot struct {
	Ingredient    string  `yaml:"ingredient"`
	ExpiresOn     string  `yaml:"expires_on"`
	ExpiresInDays int     `yaml:"expires_in_days"`
	Quantity      float64 `yaml:"quantity"`
	Unit          string  `yaml:"unit"`
}

type fallbackHit struct {
	RecipeID   string  `yaml:"recipe_id"`
	Title      string  `yaml:"title"`
	Similarity float64 `yaml:"similarity"`
}

// Load reads a dataset from a YAML file
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and checks a dataset
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (ds *Dataset) validate() error {
	for i, ing := range ds.Ingredients {
		if ing.ID == "" {
			return fmt.Errorf("%w: ingredient %d has no id", internalerr.ErrInvalidInput, i)
		}
	}
	for i, r := range ds.Recipes {
		if r.ID == "" {
			return fmt.Errorf("%w: recipe %d has no id", internalerr.ErrInvalidInput, i)
		}
	}
	for _, u := range ds.Users {
		if u.ID == "" {
			return fmt.Errorf("%w: user with no id", internalerr.ErrInvalidInput)
		}
		for _, lot := range u.Inventory {
			if lot.ExpiresOn == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", lot.ExpiresOn); err != nil {
				return fmt.Errorf("%w: user %s lot %s: %v", internalerr.ErrInvalidInput, u.ID, lot.Ingredient, err)
			}
		}
	}
	return nil
}

// Apply writes the dataset through w. Relative expiries and cook times are
// resolved against asOf.
func (ds *Dataset) Apply(ctx context.Context, w store.Writer, asOf time.Time) error {
	for _, ing := range ds.Ingredients {
		if err := w.UpsertIngredient(ctx, store.Ingredient{ID: ing.ID, DisplayName: ing.Name}); err != nil {
			return fmt.Errorf("ingredient %s: %w", ing.ID, err)
		}
	}

	for _, r := range ds.Recipes {
		reqs := make([]store.Requirement, len(r.Ingredients))
		for i, ri := range r.Ingredients {
			reqs[i] = store.Requirement{RecipeID: r.ID, IngredientID: ri.ID, Optional: ri.Optional}
		}
		recipe := store.Recipe{
			ID:              r.ID,
			Title:           r.Title,
			Flavor:          r.Flavor,
			Cuisine:         r.Cuisine,
			PrepTimeMinutes: r.PrepTimeMinutes,
			ImageURL:        r.ImageURL,
		}
		if err := w.UpsertRecipe(ctx, recipe, reqs); err != nil {
			return fmt.Errorf("recipe %s: %w", r.ID, err)
		}
	}

	for _, u := range ds.Users {
		if u.Profile != nil {
			if err := w.UpsertFlavorProfile(ctx, u.ID, store.FlavorProfile(u.Profile)); err != nil {
				return fmt.Errorf("user %s profile: %w", u.ID, err)
			}
		}
		for _, id := range u.Cooked {
			if err := w.RecordCook(ctx, u.ID, id, asOf); err != nil {
				return fmt.Errorf("user %s cooked %s: %w", u.ID, id, err)
			}
		}
		for _, lot := range u.Inventory {
			item := store.InventoryItem{
				UserID:       u.ID,
				IngredientID: lot.Ingredient,
				ExpiresOn:    lot.expiry(asOf),
				Quantity:     lot.Quantity,
				Unit:         lot.Unit,
			}
			if err := w.AddInventoryItem(ctx, item); err != nil {
				return fmt.Errorf("user %s lot %s: %w", u.ID, lot.Ingredient, err)
			}
		}
	}
	return nil
}

func (l Lot) expiry(asOf time.Time) time.Time {
	if l.ExpiresOn != "" {
		if t, err := time.Parse("2006-01-02", l.ExpiresOn); err == nil {
			return t
		}
	}
	return store.Day(asOf).AddDate(0, 0, l.ExpiresInDays)
}

// Searcher returns a static fallback searcher over the dataset's
// precomputed similar-recipe list.
func (ds *Dataset) Searcher() *fallback.Static {
	hits := make([]fallback.Hit, len(ds.Similar))
	for i, h := range ds.Similar {
		hits[i] = fallback.Hit{RecipeID: h.RecipeID, Title: h.Title, Similarity: h.Similarity}
	}
	return fallback.NewStatic(hits...)
}
