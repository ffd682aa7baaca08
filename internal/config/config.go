// Package config handles TOML-based configuration loading and validation.
// The loaded Config is passed explicitly to the orchestrator and every
// provider; nothing reads it from package state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ProviderToggle enables or disables one provider. Declaration order is
// the presentation order of aggregated results.
type ProviderToggle struct {
	ID      string `toml:"id"`
	Enabled bool   `toml:"enabled"`
}

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration.
type Config struct {
	Providers    []ProviderToggle `toml:"providers"`
	Timeout      Duration         `toml:"timeout"`
	MinHostDelay Duration         `toml:"min_host_delay"`
	UserAgent    string           `toml:"user_agent"`
	OutputDir    string           `toml:"output_dir"`
	Format       string           `toml:"format"`
	FFmpeg       string           `toml:"ffmpeg"`
	MaxParallel  int              `toml:"max_parallel"`
	History      bool             `toml:"history"`
	CaptureDir   string           `toml:"capture_dir"`
	Debug        bool             `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Providers: []ProviderToggle{
			{ID: "animeon", Enabled: true},
			{ID: "anitube", Enabled: true},
			{ID: "uaflix", Enabled: true},
			{ID: "uakino", Enabled: true},
		},
		Timeout:      Duration{30 * time.Second},
		MinHostDelay: Duration{500 * time.Millisecond},
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		OutputDir:    "~/Videos/stream2media",
		Format:       "mkv",
		FFmpeg:       "ffmpeg",
		MaxParallel:  4,
		History:      true,
	}
}

// EnabledProviders returns enabled provider identifiers in declaration order.
func (c *Config) EnabledProviders() []string {
	var ids []string
	for _, p := range c.Providers {
		if p.Enabled {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// SetEnabled toggles a provider, appending it when it is not declared yet.
func (c *Config) SetEnabled(id string, enabled bool) {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			c.Providers[i].Enabled = enabled
			return
		}
	}
	c.Providers = append(c.Providers, ProviderToggle{ID: id, Enabled: enabled})
}

// OnlyProviders enables exactly the given identifiers, keeping declaration order.
func (c *Config) OnlyProviders(ids []string) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.ToLower(strings.TrimSpace(id))] = true
	}
	for i := range c.Providers {
		c.Providers[i].Enabled = want[c.Providers[i].ID]
		delete(want, c.Providers[i].ID)
	}
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if want[id] {
			c.Providers = append(c.Providers, ProviderToggle{ID: id, Enabled: true})
			delete(want, id)
		}
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stream2media"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "stream2media"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a specific config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// A file that declares providers replaces the default list entirely.
	var probe struct {
		Providers []ProviderToggle `toml:"providers"`
	}
	if _, err := toml.Decode(string(data), &probe); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(probe.Providers) > 0 {
		cfg.Providers = nil
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MinHostDelay.Duration < 0 {
		return fmt.Errorf("min_host_delay cannot be negative, got %s", c.MinHostDelay)
	}

	validFormats := map[string]bool{"mkv": true, "ts": true}
	if !validFormats[strings.ToLower(c.Format)] {
		return fmt.Errorf("unsupported format %q (valid: mkv, ts)", c.Format)
	}

	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider entry with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("provider %q declared twice", p.ID)
		}
		seen[p.ID] = true
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	return nil
}

// ExpandOutputDir resolves ~ in the output directory path.
func (c *Config) ExpandOutputDir() (string, error) {
	return expandHome(c.OutputDir)
}

func expandHome(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// HistoryPath returns the path to the processed-episode ledger.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "stream2media", "history.db"), nil
}
