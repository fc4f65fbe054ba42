// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	educache "github.com/openedu/educache/internal"
)

// Config is the top-level educache configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Usage     UsageConfig     `yaml:"usage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Providers []ProviderEntry `yaml:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig holds durable cache settings.
type CacheConfig struct {
	// Path is the SQLite file path, or ":memory:".
	Path              string        `yaml:"path"`
	DefaultTTL        time.Duration `yaml:"default_ttl"`
	MaxSizeMB         int64         `yaml:"max_size_mb"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	HotEntries        int           `yaml:"hot_entries"`
	Compression       bool          `yaml:"compression"`
	CompressThreshold int           `yaml:"compress_threshold"`
}

// MaxSizeBytes returns the size budget in bytes.
func (c CacheConfig) MaxSizeBytes() int64 { return c.MaxSizeMB * 1024 * 1024 }

// UsageConfig holds usage tracking settings.
type UsageConfig struct {
	Retention      time.Duration `yaml:"retention"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	RollupInterval time.Duration `yaml:"rollup_interval"`
	PruneInterval  time.Duration `yaml:"prune_interval"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// ProviderEntry is an upstream content API definition in the config file.
type ProviderEntry struct {
	Name      string        `yaml:"name"`
	BaseURL   string        `yaml:"base_url"`
	RateLimit int           `yaml:"rate_limit"`
	Window    time.Duration `yaml:"window"`
	// WindowStyle is "fixed" or "rolling"; defaults to fixed.
	WindowStyle string        `yaml:"window_style"`
	TTL         time.Duration `yaml:"ttl"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Enabled     *bool         `yaml:"enabled"`
}

// IsEnabled reports whether the provider is enabled (defaults to true when nil).
func (p ProviderEntry) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Style returns the provider's window style as a domain value.
func (p ProviderEntry) Style() educache.WindowStyle {
	if p.WindowStyle == string(educache.WindowRolling) {
		return educache.WindowRolling
	}
	return educache.WindowFixed
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the built-in configuration: the four public education
// APIs with their documented request budgets.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Path:              "educache.db",
			DefaultTTL:        time.Hour,
			MaxSizeMB:         100,
			SweepInterval:     time.Hour,
			HotEntries:        4096,
			Compression:       true,
			CompressThreshold: 1024,
		},
		Usage: UsageConfig{
			Retention:      7 * 24 * time.Hour,
			FlushInterval:  5 * time.Second,
			RollupInterval: 5 * time.Minute,
			PruneInterval:  time.Hour,
		},
		Providers: []ProviderEntry{
			{Name: "openlibrary", BaseURL: "https://openlibrary.org", RateLimit: 100, Window: time.Minute, TTL: 24 * time.Hour, Timeout: 30 * time.Second},
			{Name: "wikipedia", BaseURL: "https://en.wikipedia.org/api/rest_v1", RateLimit: 200, Window: time.Minute, TTL: 12 * time.Hour, Timeout: 30 * time.Second},
			{Name: "dictionary", BaseURL: "https://api.dictionaryapi.dev/api/v2", RateLimit: 450, Window: time.Hour, TTL: 7 * 24 * time.Hour, Timeout: 15 * time.Second},
			// arXiv asks for roughly one request every three seconds; a
			// rolling window matches that guidance better than aligned resets.
			{Name: "arxiv", BaseURL: "http://export.arxiv.org/api", RateLimit: 20, Window: time.Minute, WindowStyle: "rolling", TTL: time.Hour, Timeout: 60 * time.Second},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// Values not present in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
