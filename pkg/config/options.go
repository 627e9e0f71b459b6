// Package config loads the tunables that govern connection, reconnect,
// command timeout, and cache behavior across pkg/connection, pkg/manager
// and pkg/cache.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Options holds every recognized configuration input. Field names mirror
// the gateway protocol's documented configuration table; YAML tags use
// the lower camel-case spelling operators will recognize from that table.
type Options struct {
	MaxReconnectAttempts      int           `yaml:"maxReconnectAttempts"`
	InitialReconnectDelay     time.Duration `yaml:"initialReconnectDelayMs"`
	MaxReconnectDelay         time.Duration `yaml:"maxReconnectDelayMs"`
	ConnectTimeout            time.Duration `yaml:"connectTimeoutMs"`
	CommandTimeout            time.Duration `yaml:"commandTimeoutMs"`
	ReadingTimeout            time.Duration `yaml:"readingTimeoutMs"`
	PingInterval              time.Duration `yaml:"pingIntervalMs"`
	PingInactivityThreshold   time.Duration `yaml:"pingInactivityThresholdMs"`
	StateDebounce             time.Duration `yaml:"stateDebounceMs"`
	QueueDrainPacing          time.Duration `yaml:"queueDrainPacingMs"`
	CachePerKindCapacity      int           `yaml:"cachePerKindCapacity"`
}

// Default returns the literal default configuration from the gateway
// protocol's documented configuration table.
func Default() Options {
	return Options{
		MaxReconnectAttempts:    5,
		InitialReconnectDelay:   1000 * time.Millisecond,
		MaxReconnectDelay:       30000 * time.Millisecond,
		ConnectTimeout:          10000 * time.Millisecond,
		CommandTimeout:          10000 * time.Millisecond,
		ReadingTimeout:          30000 * time.Millisecond,
		PingInterval:            30000 * time.Millisecond,
		PingInactivityThreshold: 20000 * time.Millisecond,
		StateDebounce:           2000 * time.Millisecond,
		QueueDrainPacing:        100 * time.Millisecond,
		CachePerKindCapacity:    100,
	}
}

// rawOptions mirrors Options but with millisecond integers, matching the
// wire representation of the configuration table (and of most YAML
// config files operators will hand-write).
type rawOptions struct {
	MaxReconnectAttempts      *int `yaml:"maxReconnectAttempts"`
	InitialReconnectDelayMs   *int64 `yaml:"initialReconnectDelayMs"`
	MaxReconnectDelayMs       *int64 `yaml:"maxReconnectDelayMs"`
	ConnectTimeoutMs          *int64 `yaml:"connectTimeoutMs"`
	CommandTimeoutMs          *int64 `yaml:"commandTimeoutMs"`
	ReadingTimeoutMs          *int64 `yaml:"readingTimeoutMs"`
	PingIntervalMs            *int64 `yaml:"pingIntervalMs"`
	PingInactivityThresholdMs *int64 `yaml:"pingInactivityThresholdMs"`
	StateDebounceMs           *int64 `yaml:"stateDebounceMs"`
	QueueDrainPacingMs        *int64 `yaml:"queueDrainPacingMs"`
	CachePerKindCapacity      *int   `yaml:"cachePerKindCapacity"`
}

// Load reads a YAML configuration file at path and overlays it onto
// Default(). Fields absent from the file keep their default value.
func Load(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawOptions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if raw.MaxReconnectAttempts != nil {
		opts.MaxReconnectAttempts = *raw.MaxReconnectAttempts
	}
	if raw.InitialReconnectDelayMs != nil {
		opts.InitialReconnectDelay = time.Duration(*raw.InitialReconnectDelayMs) * time.Millisecond
	}
	if raw.MaxReconnectDelayMs != nil {
		opts.MaxReconnectDelay = time.Duration(*raw.MaxReconnectDelayMs) * time.Millisecond
	}
	if raw.ConnectTimeoutMs != nil {
		opts.ConnectTimeout = time.Duration(*raw.ConnectTimeoutMs) * time.Millisecond
	}
	if raw.CommandTimeoutMs != nil {
		opts.CommandTimeout = time.Duration(*raw.CommandTimeoutMs) * time.Millisecond
	}
	if raw.ReadingTimeoutMs != nil {
		opts.ReadingTimeout = time.Duration(*raw.ReadingTimeoutMs) * time.Millisecond
	}
	if raw.PingIntervalMs != nil {
		opts.PingInterval = time.Duration(*raw.PingIntervalMs) * time.Millisecond
	}
	if raw.PingInactivityThresholdMs != nil {
		opts.PingInactivityThreshold = time.Duration(*raw.PingInactivityThresholdMs) * time.Millisecond
	}
	if raw.StateDebounceMs != nil {
		opts.StateDebounce = time.Duration(*raw.StateDebounceMs) * time.Millisecond
	}
	if raw.QueueDrainPacingMs != nil {
		opts.QueueDrainPacing = time.Duration(*raw.QueueDrainPacingMs) * time.Millisecond
	}
	if raw.CachePerKindCapacity != nil {
		opts.CachePerKindCapacity = *raw.CachePerKindCapacity
	}

	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return opts, nil
}

// Validate rejects non-positive durations and counts, except
// stateDebounceMs and queueDrainPacingMs, which may be zero (no debounce,
// no pacing) and are rejected only when negative.
func (o Options) Validate() error {
	type check struct {
		name string
		ok   bool
	}
	checks := []check{
		{"maxReconnectAttempts", o.MaxReconnectAttempts > 0},
		{"initialReconnectDelayMs", o.InitialReconnectDelay > 0},
		{"maxReconnectDelayMs", o.MaxReconnectDelay > 0},
		{"connectTimeoutMs", o.ConnectTimeout > 0},
		{"commandTimeoutMs", o.CommandTimeout > 0},
		{"readingTimeoutMs", o.ReadingTimeout > 0},
		{"pingIntervalMs", o.PingInterval > 0},
		{"pingInactivityThresholdMs", o.PingInactivityThreshold > 0},
		{"stateDebounceMs", o.StateDebounce >= 0},
		{"queueDrainPacingMs", o.QueueDrainPacing >= 0},
		{"cachePerKindCapacity", o.CachePerKindCapacity > 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("config: %s must be positive", c.name)
		}
	}
	if o.InitialReconnectDelay > o.MaxReconnectDelay {
		return fmt.Errorf("config: initialReconnectDelayMs must not exceed maxReconnectDelayMs")
	}
	return nil
}
