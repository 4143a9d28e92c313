package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/fridgerank/pkg/fridgerank/store/sqlite"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	summary, err := seed(ctx, "../../pkg/fridgerank/fixture/testdata/kitchen.yaml", dbPath, asOf)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if want := "19 ingredients, 8 recipes, 2 users, 13 inventory lots"; summary != want {
		t.Errorf("summary = %q, want %q", summary, want)
	}

	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	inv, err := st.ValidItems(ctx, "u2", asOf)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv) != 2 {
		t.Errorf("u2 valid items = %d, want 2", len(inv))
	}

	// Reseeding an existing database must not fail.
	if _, err := seed(ctx, "../../pkg/fridgerank/fixture/testdata/kitchen.yaml", dbPath, asOf); err != nil {
		t.Errorf("reseed: %v", err)
	}
}

func TestSeedMissingFixture(t *testing.T) {
	if _, err := seed(context.Background(), filepath.Join(t.TempDir(), "none.yaml"), filepath.Join(t.TempDir(), "x.db"), time.Now()); err == nil {
		t.Error("expected error for missing fixture")
	}
}
