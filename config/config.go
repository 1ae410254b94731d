// Package config loads the cycler process's runtime settings and node
// manifest from YAML and environment variables, grounded on the teacher's
// cli.initConfig viper wiring (defaults, then config file, then
// CYCLERD_-prefixed environment variables; no command-line flags are bound)
// generalized from a single flat service config to the nested
// {manifest_path, observability, recording, log} shape this process needs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RuntimeConfig is the process-wide configuration snapshot handed to the
// catalog builder and the cycler runners once loaded and validated.
type RuntimeConfig struct {
	ManifestPath string `mapstructure:"manifest_path"`

	Observability ObservabilityConfig `mapstructure:"observability"`
	Recording     RecordingConfig     `mapstructure:"recording"`
	Log           LogConfig           `mapstructure:"log"`
}

// ObservabilityConfig configures the observability WebSocket server.
type ObservabilityConfig struct {
	Addr      string  `mapstructure:"addr"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// RecordingConfig configures the bbolt-backed recording sink.
type RecordingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	EveryN  uint64 `mapstructure:"every_n"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Defaults returns the configuration a fresh process starts from before any
// file or environment override is applied.
func Defaults() RuntimeConfig {
	return RuntimeConfig{
		ManifestPath: "manifest.yaml",
		Observability: ObservabilityConfig{
			Addr: ":7000",
		},
		Recording: RecordingConfig{
			Enabled: false,
			Path:    "recording.bolt",
			EveryN:  1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configFile (if non-empty) plus any CYCLERD_-prefixed
// environment variables into a RuntimeConfig seeded with Defaults, matching
// the teacher's viper.AutomaticEnv + explicit config-file precedence.
func Load(configFile string) (RuntimeConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("cyclerd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("manifest_path", def.ManifestPath)
	v.SetDefault("observability.addr", def.Observability.Addr)
	v.SetDefault("observability.rate_limit", def.Observability.RateLimit)
	v.SetDefault("recording.enabled", def.Recording.Enabled)
	v.SetDefault("recording.path", def.Recording.Path)
	v.SetDefault("recording.every_n", def.Recording.EveryN)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return RuntimeConfig{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration that would fail in confusing ways deep
// inside cycler startup, matching the teacher's fail-fast EnvConfig checks.
func (c RuntimeConfig) Validate() error {
	if c.ManifestPath == "" {
		return fmt.Errorf("config: manifest_path must not be empty")
	}
	if c.Recording.Enabled && c.Recording.Path == "" {
		return fmt.Errorf("config: recording.path must not be empty when recording.enabled is true")
	}
	if c.Recording.EveryN == 0 {
		return fmt.Errorf("config: recording.every_n must be >= 1")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be %q or %q, got %q", "text", "json", c.Log.Format)
	}
	return nil
}

// LoadManifest reads and parses the node manifest file named by
// cfg.ManifestPath.
func LoadManifest(cfg RuntimeConfig) (*Manifest, error) {
	data, err := os.ReadFile(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("config: read manifest %s: %w", cfg.ManifestPath, err)
	}
	return ParseManifest(data)
}

// CycleBudget is a fixed 10ms default period. Nothing in this repository
// reads it: each cycler.Runner takes its own cycler.Config.Budget, and a
// zero Budget disables overrun detection.
const CycleBudget = 10 * time.Millisecond
