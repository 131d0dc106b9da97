package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PITWALL_CONFIG is set
//  3. env (prefix PITWALL_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PITWALL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PITWALL_ADDR, PITWALL_QUEUE_SIZE, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("PITWALL_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "pitwall_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	switch {
	case cfg.Addr == "":
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.WindowCapacity < 1:
		return nil, fmt.Errorf("%w: window_capacity must be positive", ErrInvalidConfig)
	case cfg.MinSamples < 1:
		return nil, fmt.Errorf("%w: min_samples must be positive", ErrInvalidConfig)
	case cfg.EmitIntervalMS < 0:
		return nil, fmt.Errorf("%w: emit_interval_ms must not be negative", ErrInvalidConfig)
	case cfg.MaxLeaderboard < 1:
		return nil, fmt.Errorf("%w: max_leaderboard must be positive", ErrInvalidConfig)
	case cfg.FlushEvery < 1:
		return nil, fmt.Errorf("%w: flush_every must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
