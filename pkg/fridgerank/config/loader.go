package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/cognicore/fridgerank/pkg/fridgerank/internalerr"
)

// EnvPrefix prefixes every environment override, e.g.
// FRIDGERANK_TIERS_MAX_PER_TIER.
const EnvPrefix = "FRIDGERANK_"

// PathEnvVar names a config file when Load is given an empty path.
const PathEnvVar = "FRIDGERANK_CONFIG"

var sections = []string{"scoring", "tiers", "fallback", "logging", "store"}

// legacyEnv maps unprefixed variable names still used by deployments.
var legacyEnv = map[string]string{
	"weight_expiry":   "scoring.weight_expiry",
	"weight_flavor":   "scoring.weight_flavor",
	"weight_familiar": "scoring.weight_familiar",
}

// Load layers defaults, an optional YAML file and environment variables,
// then validates the result. An empty path falls back to $FRIDGERANK_CONFIG;
// with neither set only defaults and the environment apply. Keys that do
// not name a Config field are rejected.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	known := make(map[string]struct{})
	for _, key := range k.Keys() {
		known[key] = struct{}{}
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for _, key := range k.Keys() {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("%w: unknown key %q", internalerr.ErrInvalidConfig, key)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps an environment variable to a koanf path. Unrelated
// variables map to "" and are ignored.
//
//	FRIDGERANK_SCORING_WEIGHT_EXPIRY -> scoring.weight_expiry
//	WEIGHT_FLAVOR                    -> scoring.weight_flavor
func envKey(key string) string {
	lower := strings.ToLower(key)
	if path, ok := legacyEnv[lower]; ok {
		return path
	}

	rest, ok := strings.CutPrefix(lower, strings.ToLower(EnvPrefix))
	if !ok {
		return ""
	}
	for _, section := range sections {
		if field, ok := strings.CutPrefix(rest, section+"_"); ok && field != "" {
			return section + "." + field
		}
	}
	return ""
}
