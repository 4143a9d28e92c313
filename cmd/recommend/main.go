package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cognicore/fridgerank/internal/logging"
	"github.com/cognicore/fridgerank/pkg/fridgerank"
	"github.com/cognicore/fridgerank/pkg/fridgerank/config"
	"github.com/cognicore/fridgerank/pkg/fridgerank/fallback"
	"github.com/cognicore/fridgerank/pkg/fridgerank/fixture"
	"github.com/cognicore/fridgerank/pkg/fridgerank/metrics"
	"github.com/cognicore/fridgerank/pkg/fridgerank/store/sqlite"
)

type options struct {
	configPath  string
	dbPath      string
	userID      string
	maxPerTier  int
	tier5       bool
	similarPath string
	metricsOut  string
	pretty      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (default $FRIDGERANK_CONFIG)")
	flag.StringVar(&opts.dbPath, "db", "", "Database path (overrides store.path)")
	flag.StringVar(&opts.userID, "user", "", "User to recommend for (required)")
	flag.IntVar(&opts.maxPerTier, "max", 0, "Recipes per tier, 0 for the configured default")
	flag.BoolVar(&opts.tier5, "tier5", true, "Run the global search tier when tiers 1-4 are sparse")
	flag.StringVar(&opts.similarPath, "similar", "", "Fixture file whose similar hits back global search (optional)")
	flag.StringVar(&opts.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file after the run (optional)")
	flag.BoolVar(&opts.pretty, "pretty", true, "Indent JSON output")
	flag.Parse()

	if opts.userID == "" {
		log.Fatal("--user required")
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.dbPath != "" {
		cfg.Store.Path = opts.dbPath
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	reg := prometheus.NewRegistry()
	engine, cleanup, err := buildEngine(ctx, cfg, opts.similarPath, logger, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	tier5 := opts.tier5
	resp, err := engine.Generate(ctx, fridgerank.Request{
		UserID:       opts.userID,
		MaxPerTier:   opts.maxPerTier,
		IncludeTier5: &tier5,
	})
	if opts.metricsOut != "" {
		// written even for failed requests so the outcome is recorded
		if werr := prometheus.WriteToTextfile(opts.metricsOut, reg); werr != nil {
			logger.Error().Err(werr).Str("path", opts.metricsOut).Msg("write metrics failed")
		}
	}
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	var data []byte
	if opts.pretty {
		data, err = json.MarshalIndent(resp, "", "  ")
	} else {
		data, err = json.Marshal(resp)
	}
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// buildEngine wires the store, fallback searcher and metrics. Collectors
// register on reg.
func buildEngine(ctx context.Context, cfg *config.Config, similarPath string, logger zerolog.Logger, reg prometheus.Registerer) (*fridgerank.Engine, func(), error) {
	st, err := sqlite.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := func() { st.Close() }

	m := metrics.New(reg)

	var searcher fallback.Searcher
	if similarPath != "" {
		ds, err := fixture.Load(similarPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load similar hits: %w", err)
		}
		searcher = ds.Searcher()
	}
	if searcher != nil && cfg.Fallback.Enabled {
		searcher = fallback.NewBreaker(searcher, fallback.BreakerSettings{
			MaxRequests: cfg.Fallback.MaxRequests,
			Interval:    cfg.Fallback.Interval,
			Timeout:     cfg.Fallback.Timeout,
			MinRequests: cfg.Fallback.MinRequests,
			TripRatio:   cfg.Fallback.TripRatio,
		}, logger, m)
	}

	engine, err := fridgerank.New(fridgerank.Options{
		Store:    st,
		Searcher: searcher,
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, cleanup, nil
}
