// Package config loads tool configuration from YAML with sensible
// defaults, so bare invocations work without any file on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ArchiveConfig names the build output to locate when the CLI is
// given a directory instead of an archive path.
type ArchiveConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Dir     string `yaml:"dir"`
}

// AuditConfig controls the hash-chained rewrite log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig tunes continuous rewrite mode.
type WatchConfig struct {
	DebounceMS     int  `yaml:"debounce_ms"`
	UsePolling     bool `yaml:"use_polling"`
	PollIntervalMS int  `yaml:"poll_interval_ms"`
}

// Debounce returns the debounce window as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// PollInterval returns the polling interval as a duration.
func (w WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// Config holds all configurable parameters.
type Config struct {
	Archive ArchiveConfig `yaml:"archive"`
	Audit   AuditConfig   `yaml:"audit"`
	Watch   WatchConfig   `yaml:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	auditPath := "rewrites.jsonl"
	if home, err := os.UserHomeDir(); err == nil {
		auditPath = filepath.Join(home, ".stackwarden", "rewrites.jsonl")
	}
	return &Config{
		Audit: AuditConfig{
			Enabled: true,
			Path:    auditPath,
		},
		Watch: WatchConfig{
			DebounceMS:     500,
			PollIntervalMS: 5000,
		},
	}
}

// Load loads configuration from a YAML file. Empty path falls back to
// ~/.stackwarden/config.yaml. Missing file returns defaults. Invalid
// YAML or invalid values return an error.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(home, ".stackwarden", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("config: watch.debounce_ms must not be negative")
	}
	if c.Watch.PollIntervalMS < 0 {
		return fmt.Errorf("config: watch.poll_interval_ms must not be negative")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("config: audit.path required when audit is enabled")
	}
	return nil
}
