// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and env vars.
// - External errors are wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ingestion queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the duplicate-sample cache.
	DedupeSize int `koanf:"dedupe_size"`

	// WindowCapacity bounds each driver's rolling feature window.
	WindowCapacity int `koanf:"window_capacity"`

	// MinSamples gates feature extraction per driver window.
	MinSamples int `koanf:"min_samples"`

	// EmitIntervalMS is the minimum time between leaderboard broadcasts.
	EmitIntervalMS int `koanf:"emit_interval_ms"`

	// MaxLeaderboard caps the ranked top-N list.
	MaxLeaderboard int `koanf:"max_leaderboard"`

	// ReplayDir is where run configs and replay records are persisted.
	ReplayDir string `koanf:"replay_dir"`

	// FlushEvery amortizes replay durability: flush every Nth telemetry append.
	FlushEvery int `koanf:"flush_every"`

	// DeliveryTimeoutMS bounds a single subscriber delivery.
	DeliveryTimeoutMS int `koanf:"delivery_timeout_ms"`

	// SendBuffer sets the per-subscriber outbound queue length.
	SendBuffer int `koanf:"send_buffer"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8000",
		QueueSize:         100_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        50_000,
		WindowCapacity:    40,
		MinSamples:        5,
		EmitIntervalMS:    500,
		MaxLeaderboard:    20,
		ReplayDir:         "replays",
		FlushEvery:        200,
		DeliveryTimeoutMS: 1000,
		SendBuffer:        64,
	}
}
