// Package config loads (once, at startup) the recognized configuration keys
// of spec §3.1, the way pkg/kernel/schema/loader.go loads runbook YAML in
// the teacher repo — gopkg.in/yaml.v3, defaults seeded before overlay.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Frequency is the injection cadence enum (§3.1).
type Frequency struct {
	Mode     string // always | every | first-only | never
	Interval int    // only meaningful when Mode == "every"
}

// UnmarshalYAML accepts either a bare string ("always") or "every(3)".
func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	mode, interval, err := ParseFrequency(raw)
	if err != nil {
		return err
	}
	f.Mode, f.Interval = mode, interval
	return nil
}

// ParseFrequency parses "always", "never", "first-only", or "every(N)".
func ParseFrequency(raw string) (mode string, interval int, err error) {
	switch raw {
	case "", "always":
		return "always", 0, nil
	case "never":
		return "never", 0, nil
	case "first-only":
		return "first-only", 0, nil
	}
	var n int
	if _, scanErr := fmt.Sscanf(raw, "every(%d)", &n); scanErr == nil && n > 0 {
		return "every", n, nil
	}
	return "", 0, fmt.Errorf("config: invalid frequency %q", raw)
}

// InjectionConfig controls one of the three injection types (system-prompt,
// gate-guidance, style-guidance).
type InjectionConfig struct {
	Enabled   bool      `yaml:"enabled"`
	Frequency Frequency `yaml:"frequency"`
	Target    string    `yaml:"target"` // both | steps | gates
}

// InjectionGroup bundles the three injection-type configs under one key.
type InjectionGroup struct {
	SystemPrompt  InjectionConfig `yaml:"system-prompt"`
	GateGuidance  InjectionConfig `yaml:"gate-guidance"`
	StyleGuidance InjectionConfig `yaml:"style-guidance"`
}

// VersioningConfig is external; the core only consults Enabled.
type VersioningConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxVersions int  `yaml:"max_versions"`
	AutoVersion bool `yaml:"auto_version"`
}

// GatesConfig holds gate-wide defaults.
type GatesConfig struct {
	DefaultMaxAttempts int `yaml:"default_max_attempts"`
}

// SessionsConfig holds session garbage-collection settings.
type SessionsConfig struct {
	IdleExpirySeconds int `yaml:"idle_expiry_seconds"`
}

// HotReloadConfig holds the file-watch coalescing window.
type HotReloadConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// FrameworksConfig is the global kill switch for methodology effects.
type FrameworksConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the full recognized configuration surface (§3.1).
type Config struct {
	Injection  InjectionGroup   `yaml:"injection"`
	Versioning VersioningConfig `yaml:"versioning"`
	Frameworks FrameworksConfig `yaml:"frameworks"`
	Gates      GatesConfig      `yaml:"gates"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	HotReload  HotReloadConfig  `yaml:"hot_reload"`
}

// Default returns the built-in system defaults (§3.1 / §4.3 priority 7).
func Default() *Config {
	return &Config{
		Injection: InjectionGroup{
			SystemPrompt:  InjectionConfig{Enabled: true, Frequency: Frequency{Mode: "always"}, Target: "both"},
			GateGuidance:  InjectionConfig{Enabled: true, Frequency: Frequency{Mode: "always"}, Target: "both"},
			StyleGuidance: InjectionConfig{Enabled: true, Frequency: Frequency{Mode: "first-only"}, Target: "both"},
		},
		Versioning: VersioningConfig{Enabled: false},
		Frameworks: FrameworksConfig{Enabled: true},
		Gates:      GatesConfig{DefaultMaxAttempts: 3},
		Sessions:   SessionsConfig{IdleExpirySeconds: 3600},
		HotReload:  HotReloadConfig{DebounceMS: 500},
	}
}

// Load reads and parses a config file, falling back to defaults for
// anything the file doesn't specify — a shallow merge rooted at Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Store holds the live config behind an atomic pointer, matching the
// registries' atomic-swap discipline (§5) so readers never observe a
// half-applied reload.
type Store struct {
	v atomic.Pointer[Config]
}

// NewStore creates a store seeded with cfg (or defaults if nil).
func NewStore(cfg *Config) *Store {
	s := &Store{}
	if cfg == nil {
		cfg = Default()
	}
	s.v.Store(cfg)
	return s
}

// Get returns the current config snapshot.
func (s *Store) Get() *Config { return s.v.Load() }

// Swap atomically replaces the live config.
func (s *Store) Swap(cfg *Config) { s.v.Store(cfg) }
