// Package config loads osmread settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NERVsystems/osmread/pkg/core"
	"github.com/NERVsystems/osmread/pkg/osm"
)

// Config holds every setting the CLI reads. Command-line flags override the
// values loaded from a file.
type Config struct {
	Compression string     `yaml:"compression"`
	Streaming   bool       `yaml:"streaming"`
	Workers     int        `yaml:"workers"`
	Output      string     `yaml:"output"`
	LogLevel    string     `yaml:"log_level"`
	Overpass    Overpass   `yaml:"overpass"`
	Monitoring  Monitoring `yaml:"monitoring"`
}

// Overpass configures the Overpass API client
type Overpass struct {
	URL       string            `yaml:"url"`
	UserAgent string            `yaml:"user_agent"`
	RPS       float64           `yaml:"rps"`
	Burst     int               `yaml:"burst"`
	Timeout   time.Duration     `yaml:"timeout"`
	CacheSize int               `yaml:"cache_size"`
	CacheTTL  time.Duration     `yaml:"cache_ttl"`
	Retry     core.RetryOptions `yaml:"retry"`
}

// Monitoring configures the Prometheus metrics endpoint
type Monitoring struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in configuration
func Default() Config {
	client := osm.DefaultClientOptions()
	return Config{
		Compression: string(osm.CompressionAuto),
		Workers:     4,
		Output:      "-",
		LogLevel:    "info",
		Overpass: Overpass{
			URL:       client.BaseURL,
			UserAgent: client.UserAgent,
			RPS:       client.RPS,
			Burst:     client.Burst,
			Timeout:   client.Timeout,
			CacheSize: client.CacheSize,
			CacheTTL:  client.CacheTTL,
			Retry:     client.Retry,
		},
		Monitoring: Monitoring{
			Addr: "localhost:9090",
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, core.NewValidationError(core.ErrInvalidInput, "decoding config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option values
func (c Config) Validate() error {
	if _, err := osm.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return invalid("workers", fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Overpass.RPS <= 0 {
		return invalid("overpass.rps", fmt.Sprintf("rps must be positive, got %g", c.Overpass.RPS))
	}
	if c.Overpass.Burst < 1 {
		return invalid("overpass.burst", fmt.Sprintf("burst must be at least 1, got %d", c.Overpass.Burst))
	}
	if c.Overpass.CacheSize < 0 {
		return invalid("overpass.cache_size", "cache size must not be negative")
	}
	if c.Overpass.Retry.MaxAttempts < 1 {
		return invalid("overpass.retry.max_attempts", "at least one attempt is required")
	}
	if c.Monitoring.Enabled && c.Monitoring.Addr == "" {
		return invalid("monitoring.addr", "monitoring is enabled without an address")
	}
	return nil
}

// Level maps LogLevel to a slog level
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, invalid("log_level", fmt.Sprintf("unknown log level %q", c.LogLevel))
	}
	return level, nil
}

// ClientOptions converts the Overpass section into client options
func (c Config) ClientOptions() osm.ClientOptions {
	return osm.ClientOptions{
		BaseURL:   c.Overpass.URL,
		UserAgent: c.Overpass.UserAgent,
		RPS:       c.Overpass.RPS,
		Burst:     c.Overpass.Burst,
		Timeout:   c.Overpass.Timeout,
		CacheSize: c.Overpass.CacheSize,
		CacheTTL:  c.Overpass.CacheTTL,
		Retry:     c.Overpass.Retry,
	}
}

func invalid(field, msg string) error {
	return core.NewValidationError(core.ErrInvalidInput, msg).WithField(field)
}
