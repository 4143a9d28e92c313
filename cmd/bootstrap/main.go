package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/cognicore/fridgerank/pkg/fridgerank/fixture"
	"github.com/cognicore/fridgerank/pkg/fridgerank/store/sqlite"
)

func main() {
	var (
		fixturePath = flag.String("fixture", "", "YAML dataset to load (required)")
		dbPath      = flag.String("db", "fridgerank.db", "Database path")
		asOfStr     = flag.String("as-of", "", "Reference date for relative expiries, YYYY-MM-DD (default today)")
	)
	flag.Parse()

	if *fixturePath == "" {
		log.Fatal("--fixture required")
	}

	asOf := time.Now()
	if *asOfStr != "" {
		t, err := time.Parse("2006-01-02", *asOfStr)
		if err != nil {
			log.Fatalf("invalid --as-of: %v", err)
		}
		asOf = t
	}

	summary, err := seed(context.Background(), *fixturePath, *dbPath, asOf)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Seeded %s: %s", *dbPath, summary)
}

// seed loads the dataset and writes it into the SQLite database at dbPath.
func seed(ctx context.Context, fixturePath, dbPath string, asOf time.Time) (string, error) {
	ds, err := fixture.Load(fixturePath)
	if err != nil {
		return "", fmt.Errorf("load fixture: %w", err)
	}

	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		return "", fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := ds.Apply(ctx, st, asOf); err != nil {
		return "", fmt.Errorf("apply fixture: %w", err)
	}

	lots := 0
	for _, u := range ds.Users {
		lots += len(u.Inventory)
	}
	return fmt.Sprintf("%d ingredients, %d recipes, %d users, %d inventory lots",
		len(ds.Ingredients), len(ds.Recipes), len(ds.Users), lots), nil
}
