package store

import (
	"context"
	"time"
)

// Store is the full data-access boundary: every provider the engine reads
// from plus the write path used by fixtures and tests.
type Store interface {
	Close() error

	InventoryProvider
	HistoryProvider
	FlavorProfileProvider
	CandidateProvider
	UrgentItemsProvider

	Writer
}

// InventoryProvider returns the soonest valid expiry per ingredient.
// Items with quantity <= 0 or an expiry before asOf are not valid.
type InventoryProvider interface {
	ValidItems(ctx context.Context, userID string, asOf time.Time) (map[string]time.Time, error)
}

// HistoryProvider returns the set of recipe IDs a user has cooked.
type HistoryProvider interface {
	CookedRecipeIDs(ctx context.Context, userID string) (map[string]struct{}, error)
}

// FlavorProfileProvider returns the learned taste profile; ok is false when
// the user has none yet.
type FlavorProfileProvider interface {
	FlavorProfile(ctx context.Context, userID string) (profile FlavorProfile, ok bool, err error)
}

// CandidateProvider returns recipes with their requirement rows, restricted to
// those missing at most maxMissing non-optional ingredients.
type CandidateProvider interface {
	CandidateRecipes(ctx context.Context, userID string, asOf time.Time, maxMissing int) ([]Candidate, error)
}

// UrgentItemsProvider returns valid inventory expiring within windowDays of asOf.
type UrgentItemsProvider interface {
	UrgentItems(ctx context.Context, userID string, asOf time.Time, windowDays int) ([]UrgentItem, error)
}

// Writer seeds data. The recommendation engine never calls it.
type Writer interface {
	UpsertIngredient(ctx context.Context, ing Ingredient) error
	UpsertRecipe(ctx context.Context, r Recipe, reqs []Requirement) error
	AddInventoryItem(ctx context.Context, item InventoryItem) error
	RecordCook(ctx context.Context, userID, recipeID string, cookedAt time.Time) error
	UpsertFlavorProfile(ctx context.Context, userID string, p FlavorProfile) error
}

// Ingredient is a canonical ingredient
type Ingredient struct {
	ID          string
	DisplayName string
}

// InventoryItem is one lot of an ingredient in a user's kitchen
type InventoryItem struct {
	UserID       string
	IngredientID string
	ExpiresOn    time.Time
	Quantity     float64
	Unit         string
}

// Valid reports whether the lot is usable on day asOf.
func (i InventoryItem) Valid(asOf time.Time) bool {
	return i.Quantity > 0 && !Day(i.ExpiresOn).Before(Day(asOf))
}

// Requirement is a recipe ingredient row
type Requirement struct {
	RecipeID     string
	IngredientID string
	Name         string // display name, used for missing_ingredients
	Optional     bool
}

// Recipe holds recipe metadata. Flavor maps axis name to a value in [0,1];
// axes may be absent.
type Recipe struct {
	ID              string
	Title           string
	Flavor          map[string]float64
	Cuisine         string
	PrepTimeMinutes int
	ImageURL        string
}

// Candidate is a recipe together with all of its requirement rows
type Candidate struct {
	Recipe       Recipe
	Requirements []Requirement
}

// FlavorProfile maps flavor axis to preference in [0,1]
type FlavorProfile map[string]float64

// UrgentItem is inventory nearing expiry
type UrgentItem struct {
	IngredientName string  `json:"ingredient_name"`
	DaysRemaining  int     `json:"days_remaining"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
}

// UnknownIngredient is reported when an inventory row references an
// ingredient with no display name.
const UnknownIngredient = "Unknown"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
