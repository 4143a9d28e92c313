package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cognicore/fridgerank/pkg/fridgerank/config"
	"github.com/cognicore/fridgerank/pkg/fridgerank/fixture"
	"github.com/cognicore/fridgerank/pkg/fridgerank/store/sqlite"
)

const kitchen = "../../pkg/fridgerank/fixture/testdata/kitchen.yaml"

func seed(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kitchen.db")

	ds, err := fixture.Load(kitchen)
	if err != nil {
		t.Fatal(err)
	}
	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := ds.Apply(ctx, st, time.Now()); err != nil {
		t.Fatal(err)
	}
	return dbPath
}

func TestBuildEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "empty.db")

	engine, cleanup, err := buildEngine(context.Background(), cfg, "", zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()
	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}
}

func TestBuildEngineMissingSimilarFile(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "empty.db")

	if _, _, err := buildEngine(context.Background(), cfg, filepath.Join(t.TempDir(), "nope.yaml"), zerolog.Nop(), nil); err == nil {
		t.Error("buildEngine should fail with a missing similar-hits file")
	}
}

func TestRunPrintsTiers(t *testing.T) {
	t.Setenv("FRIDGERANK_CONFIG", "")
	t.Setenv("FRIDGERANK_LOGGING_LEVEL", "disabled")
	dbPath := seed(t)

	var out bytes.Buffer
	err := run(context.Background(), options{
		dbPath:      dbPath,
		userID:      "u2",
		tier5:       true,
		similarPath: kitchen,
	}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var resp struct {
		UserID string                       `json:"user_id"`
		Tiers  map[string][]json.RawMessage `json:"tiers"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if resp.UserID != "u2" {
		t.Errorf("user_id = %q", resp.UserID)
	}
	if len(resp.Tiers["5"]) != 3 {
		t.Errorf("tier 5 has %d entries, want 3", len(resp.Tiers["5"]))
	}
}

func TestRunRejectsOversizedTier(t *testing.T) {
	t.Setenv("FRIDGERANK_CONFIG", "")
	t.Setenv("FRIDGERANK_LOGGING_LEVEL", "disabled")
	dbPath := seed(t)

	var out bytes.Buffer
	err := run(context.Background(), options{dbPath: dbPath, userID: "u1", maxPerTier: 99}, &out)
	if err == nil || !strings.Contains(err.Error(), "max_per_tier") {
		t.Errorf("err = %v, want max_per_tier rejection", err)
	}
}

func TestRunWritesMetrics(t *testing.T) {
	t.Setenv("FRIDGERANK_CONFIG", "")
	t.Setenv("FRIDGERANK_LOGGING_LEVEL", "disabled")
	dbPath := seed(t)
	metricsPath := filepath.Join(t.TempDir(), "fridgerank.prom")

	var out bytes.Buffer
	err := run(context.Background(), options{
		dbPath:      dbPath,
		userID:      "u2",
		tier5:       true,
		similarPath: kitchen,
		metricsOut:  metricsPath,
	}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`fridgerank_requests_total{outcome="ok"} 1`,
		`fridgerank_fallback_total{outcome="ok"} 1`,
		`fridgerank_tier_recipes{tier="5"} 3`,
		`fridgerank_fallback_breaker_state{name="fallback-search"} 0`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q:\n%s", want, text)
		}
	}
}
