package config

import (
	"fmt"
	"time"

	"github.com/cognicore/fridgerank/pkg/fridgerank/internalerr"
)

// AbsoluteMaxPerTier bounds every per-tier cap, configured or requested.
const AbsoluteMaxPerTier = 50

// Config is the full runtime configuration
type Config struct {
	Scoring  ScoringConfig  `koanf:"scoring"`
	Tiers    TiersConfig    `koanf:"tiers"`
	Fallback FallbackConfig `koanf:"fallback"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
}

// ScoringConfig holds the relevance weights and the urgency horizon
type ScoringConfig struct {
	WeightExpiry   float64 `koanf:"weight_expiry"`
	WeightFlavor   float64 `koanf:"weight_flavor"`
	WeightFamiliar float64 `koanf:"weight_familiar"`
	HorizonDays    int     `koanf:"horizon_days"`
}

// TiersConfig controls per-tier caps and the urgent-items window. The
// missing-ingredient limit and the global search trigger are fixed by the
// tier rules in package match.
type TiersConfig struct {
	MaxPerTier       int `koanf:"max_per_tier"`
	HardCap          int `koanf:"hard_cap"`
	UrgentWindowDays int `koanf:"urgent_window_days"`
}

// FallbackConfig controls the global search circuit breaker
type FallbackConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxRequests uint32        `koanf:"max_requests"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
	MinRequests uint32        `koanf:"min_requests"`
	TripRatio   float64       `koanf:"trip_ratio"`
}

// LoggingConfig selects level and output format
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig locates the SQLite database
type StoreConfig struct {
	Path string `koanf:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			WeightExpiry:   0.45,
			WeightFlavor:   0.35,
			WeightFamiliar: 0.20,
			HorizonDays:    7,
		},
		Tiers: TiersConfig{
			MaxPerTier:       10,
			HardCap:          AbsoluteMaxPerTier,
			UrgentWindowDays: 2,
		},
		Fallback: FallbackConfig{
			Enabled:     true,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			MinRequests: 5,
			TripRatio:   0.6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path: "fridgerank.db",
		},
	}
}

// Validate checks ranges. Errors wrap internalerr.ErrInvalidConfig.
func (c *Config) Validate() error {
	s := c.Scoring
	if s.WeightExpiry < 0 || s.WeightFlavor < 0 || s.WeightFamiliar < 0 {
		return invalid("scoring weights must be non-negative")
	}
	if s.WeightExpiry+s.WeightFlavor+s.WeightFamiliar == 0 {
		return invalid("at least one scoring weight must be positive")
	}
	if s.HorizonDays <= 0 {
		return invalid("scoring.horizon_days must be positive, got %d", s.HorizonDays)
	}

	t := c.Tiers
	if t.HardCap < 1 || t.HardCap > AbsoluteMaxPerTier {
		return invalid("tiers.hard_cap must be in 1..%d, got %d", AbsoluteMaxPerTier, t.HardCap)
	}
	if t.MaxPerTier < 1 || t.MaxPerTier > t.HardCap {
		return invalid("tiers.max_per_tier must be in 1..%d, got %d", t.HardCap, t.MaxPerTier)
	}
	if t.UrgentWindowDays < 0 {
		return invalid("tiers.urgent_window_days must be non-negative, got %d", t.UrgentWindowDays)
	}

	f := c.Fallback
	if f.TripRatio <= 0 || f.TripRatio > 1 {
		return invalid("fallback.trip_ratio must be in (0,1], got %v", f.TripRatio)
	}
	if f.Timeout < 0 || f.Interval < 0 {
		return invalid("fallback durations must be non-negative")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
