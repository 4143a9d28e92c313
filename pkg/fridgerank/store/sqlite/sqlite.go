package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

const dateLayout = "2006-01-02"

// profileAxes is the column order of user_flavor_profile.
var profileAxes = [6]string{"sweet", "salty", "sour", "bitter", "umami", "spicy"}

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS ingredients (
	id TEXT PRIMARY KEY,
	display_name TEXT
);

CREATE TABLE IF NOT EXISTS recipes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL,
	flavor_json TEXT,
	cuisine TEXT,
	prep_time_minutes INTEGER DEFAULT 0,
	image_url TEXT
);

CREATE TABLE IF NOT EXISTS recipe_ingredients (
	recipe_id TEXT NOT NULL,
	ingredient_id TEXT NOT NULL,
	is_optional INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL,
	FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe ON recipe_ingredients(recipe_id);

CREATE TABLE IF NOT EXISTS inventory_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	ingredient_id TEXT NOT NULL,
	expires_on TEXT NOT NULL,
	quantity REAL NOT NULL,
	unit TEXT
);

CREATE INDEX IF NOT EXISTS idx_inventory_user ON inventory_items(user_id, expires_on);

CREATE TABLE IF NOT EXISTS user_recipe_history (
	user_id TEXT NOT NULL,
	recipe_id TEXT NOT NULL,
	cooked_at TEXT NOT NULL,
	PRIMARY KEY(user_id, recipe_id)
);

CREATE TABLE IF NOT EXISTS user_flavor_profile (
	user_id TEXT PRIMARY KEY,
	sweet REAL,
	salty REAL,
	sour REAL,
	bitter REAL,
	umami REAL,
	spicy REAL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertIngredient inserts or renames an ingredient
func (s *sqliteStore) UpsertIngredient(ctx context.Context, ing store.Ingredient) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ingredients(id, display_name) VALUES(?, ?)
ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		ing.ID, ing.DisplayName)
	return err
}

// UpsertRecipe writes a recipe and replaces its requirement rows
func (s *sqliteStore) UpsertRecipe(ctx context.Context, r store.Recipe, reqs []store.Requirement) error {
	flavor, err := json.Marshal(r.Flavor)
	if err != nil {
		return fmt.Errorf("encode flavor for %s: %w", r.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO recipes(id, title, flavor_json, cuisine, prep_time_minutes, image_url)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	flavor_json = excluded.flavor_json,
	cuisine = excluded.cuisine,
	prep_time_minutes = excluded.prep_time_minutes,
	image_url = excluded.image_url`,
		r.ID, r.Title, string(flavor), r.Cuisine, r.PrepTimeMinutes, r.ImageURL)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recipe_ingredients WHERE recipe_id = ?", r.ID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO recipe_ingredients(recipe_id, ingredient_id, is_optional, position) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, req := range reqs {
		if _, err := stmt.ExecContext(ctx, r.ID, req.IngredientID, req.Optional, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddInventoryItem inserts one inventory lot
func (s *sqliteStore) AddInventoryItem(ctx context.Context, item store.InventoryItem) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO inventory_items(user_id, ingredient_id, expires_on, quantity, unit) VALUES(?, ?, ?, ?, ?)`,
		item.UserID, item.IngredientID, store.Day(item.ExpiresOn).Format(dateLayout), item.Quantity, item.Unit)
	return err
}

// RecordCook adds a recipe to the user's cook history
func (s *sqliteStore) RecordCook(ctx context.Context, userID, recipeID string, cookedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_recipe_history(user_id, recipe_id, cooked_at) VALUES(?, ?, ?)
ON CONFLICT(user_id, recipe_id) DO UPDATE SET cooked_at = excluded.cooked_at`,
		userID, recipeID, cookedAt.UTC().Format(time.RFC3339))
	return err
}

// UpsertFlavorProfile replaces a user's taste profile. Axes absent from p
// are stored as NULL.
func (s *sqliteStore) UpsertFlavorProfile(ctx context.Context, userID string, p store.FlavorProfile) error {
	args := []interface{}{userID}
	for _, axis := range profileAxes {
		if v, ok := p[axis]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_flavor_profile(user_id, sweet, salty, sour, bitter, umami, spicy)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	sweet = excluded.sweet, salty = excluded.salty, sour = excluded.sour,
	bitter = excluded.bitter, umami = excluded.umami, spicy = excluded.spicy`,
		args...)
	return err
}

// ValidItems returns the soonest valid expiry per ingredient
func (s *sqliteStore) ValidItems(ctx context.Context, userID string, asOf time.Time) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ingredient_id, MIN(expires_on)
FROM inventory_items
WHERE user_id = ? AND quantity > 0 AND expires_on >= ?
GROUP BY ingredient_id`,
		userID, store.Day(asOf).Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id, exp string
		if err := rows.Scan(&id, &exp); err != nil {
			return nil, err
		}
		t, err := time.Parse(dateLayout, exp)
		if err != nil {
			return nil, fmt.Errorf("inventory %s: bad expiry %q: %w", id, exp, err)
		}
		out[id] = t
	}
	return out, rows.Err()
}

// CookedRecipeIDs returns the user's cooked recipe set
func (s *sqliteStore) CookedRecipeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT recipe_id FROM user_recipe_history WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// FlavorProfile loads a user's taste profile
func (s *sqliteStore) FlavorProfile(ctx context.Context, userID string) (store.FlavorProfile, bool, error) {
	var vals [6]sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
SELECT sweet, salty, sour, bitter, umami, spicy FROM user_flavor_profile WHERE user_id = ?`, userID).
		Scan(&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5])
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	p := make(store.FlavorProfile, len(profileAxes))
	for i, axis := range profileAxes {
		if vals[i].Valid {
			p[axis] = vals[i].Float64
		}
	}
	return p, true, nil
}

// candidateQuery loads every requirement row of every recipe the user can
// nearly cook, with ingredient names, in a single round trip.
const candidateQuery = `
WITH user_inventory AS (
	SELECT DISTINCT ingredient_id
	FROM inventory_items
	WHERE user_id = ? AND expires_on >= ? AND quantity > 0
),
required AS (
	SELECT DISTINCT recipe_id, ingredient_id
	FROM recipe_ingredients
	WHERE is_optional = 0
),
coverage AS (
	SELECT rq.recipe_id,
	       COUNT(*) AS total,
	       COUNT(ui.ingredient_id) AS matched
	FROM required rq
	LEFT JOIN user_inventory ui ON ui.ingredient_id = rq.ingredient_id
	GROUP BY rq.recipe_id
)
SELECT r.id, r.title, COALESCE(r.flavor_json, ''), COALESCE(r.cuisine, ''),
       COALESCE(r.prep_time_minutes, 0), COALESCE(r.image_url, ''),
       ri.ingredient_id, COALESCE(ing.display_name, ''), ri.is_optional
FROM coverage c
JOIN recipes r ON r.id = c.recipe_id
JOIN recipe_ingredients ri ON ri.recipe_id = r.id
LEFT JOIN ingredients ing ON ing.id = ri.ingredient_id
WHERE c.total - c.matched <= ?
ORDER BY r.seq, ri.position`

// CandidateRecipes returns recipes missing at most maxMissing non-optional
// ingredients, with all of their requirement rows
func (s *sqliteStore) CandidateRecipes(ctx context.Context, userID string, asOf time.Time, maxMissing int) ([]store.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, candidateQuery, userID, store.Day(asOf).Format(dateLayout), maxMissing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Candidate
	for rows.Next() {
		var (
			r          store.Recipe
			flavorJSON string
			req        store.Requirement
		)
		if err := rows.Scan(&r.ID, &r.Title, &flavorJSON, &r.Cuisine, &r.PrepTimeMinutes, &r.ImageURL,
			&req.IngredientID, &req.Name, &req.Optional); err != nil {
			return nil, err
		}
		req.RecipeID = r.ID
		if req.Name == "" {
			req.Name = store.UnknownIngredient
		}

		if n := len(out); n == 0 || out[n-1].Recipe.ID != r.ID {
			r.Flavor = decodeFlavor(flavorJSON)
			out = append(out, store.Candidate{Recipe: r})
		}
		last := &out[len(out)-1]
		last.Requirements = append(last.Requirements, req)
	}
	return out, rows.Err()
}

// UrgentItems returns valid lots expiring within windowDays, soonest first
func (s *sqliteStore) UrgentItems(ctx context.Context, userID string, asOf time.Time, windowDays int) ([]store.UrgentItem, error) {
	from := store.Day(asOf)
	rows, err := s.db.QueryContext(ctx, `
SELECT COALESCE(ing.display_name, ''), inv.expires_on, inv.quantity, COALESCE(inv.unit, '')
FROM inventory_items inv
LEFT JOIN ingredients ing ON ing.id = inv.ingredient_id
WHERE inv.user_id = ?
  AND inv.quantity > 0
  AND inv.expires_on >= ?
  AND inv.expires_on <= ?
ORDER BY inv.expires_on ASC, inv.id ASC`,
		userID, from.Format(dateLayout), from.AddDate(0, 0, windowDays).Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.UrgentItem{}
	for rows.Next() {
		var (
			item store.UrgentItem
			exp  string
		)
		if err := rows.Scan(&item.IngredientName, &exp, &item.Quantity, &item.Unit); err != nil {
			return nil, err
		}
		t, err := time.Parse(dateLayout, exp)
		if err != nil {
			return nil, fmt.Errorf("urgent item: bad expiry %q: %w", exp, err)
		}
		if item.IngredientName == "" {
			item.IngredientName = store.UnknownIngredient
		}
		item.DaysRemaining = store.DaysBetween(from, t)
		out = append(out, item)
	}
	return out, rows.Err()
}

// decodeFlavor parses the stored flavor object. Non-numeric axis values
// become NaN so scoring rejects the recipe; unparseable JSON yields an
// empty vector for the same reason.
func decodeFlavor(raw string) map[string]float64 {
	out := make(map[string]float64)
	if raw == "" {
		return out
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return out
	}
	for axis, v := range m {
		if f, ok := v.(float64); ok {
			out[axis] = f
		} else {
			out[axis] = math.NaN()
		}
	}
	return out
}
