// Package config loads client configuration from an optional YAML file with
// environment-variable overrides.
//
// Precedence: built-in defaults < YAML file < environment. A .env file in the
// working directory is honored for development.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so "30s"-style values parse from both YAML
// and environment variables.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// ServerURL is the base URL of the remote service, including the API
	// prefix, e.g. https://api.example.com/api.
	ServerURL string `env:"SHIKSHA_SERVER_URL" yaml:"server_url"`

	RequestTimeout Duration `env:"SHIKSHA_REQUEST_TIMEOUT" yaml:"request_timeout"`

	// IngestPollInterval is the initial delay between completion polls after
	// an ingestion request is accepted; IngestPollTimeout bounds the whole
	// wait.
	IngestPollInterval Duration `env:"SHIKSHA_INGEST_POLL_INTERVAL" yaml:"ingest_poll_interval"`
	IngestPollTimeout  Duration `env:"SHIKSHA_INGEST_POLL_TIMEOUT" yaml:"ingest_poll_timeout"`

	LogLevel  string `env:"SHIKSHA_LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"SHIKSHA_LOG_FORMAT" yaml:"log_format"`

	// TokenCachePath is where the bearer token is persisted between runs.
	TokenCachePath string `env:"SHIKSHA_TOKEN_CACHE" yaml:"token_cache_path"`

	// TokenEncryptionKey, when set, encrypts the token cache at rest.
	// 64 hex characters (32 bytes, AES-256). Environment only.
	TokenEncryptionKey string `env:"SHIKSHA_TOKEN_KEY" yaml:"-"`
}

// DefaultPath returns the default config file location, or "" when the user
// config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "shiksha", "config.yaml")
}

// Load builds the configuration. path may be empty, in which case the default
// location is tried; a missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Load(cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	cachePath := ""
	if dir, err := os.UserConfigDir(); err == nil {
		cachePath = filepath.Join(dir, "shiksha", "token.json")
	}

	return &Config{
		ServerURL:          "http://localhost:8000/api",
		RequestTimeout:     Duration(30 * time.Second),
		IngestPollInterval: Duration(2 * time.Second),
		IngestPollTimeout:  Duration(2 * time.Minute),
		LogLevel:           "info",
		LogFormat:          "text",
		TokenCachePath:     cachePath,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SHIKSHA_SERVER_URL must be an absolute URL, got %q", c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SHIKSHA_SERVER_URL must use http or https, got %q", u.Scheme)
	}

	if c.RequestTimeout.Std() <= 0 {
		return fmt.Errorf("SHIKSHA_REQUEST_TIMEOUT must be positive")
	}
	if c.IngestPollInterval.Std() <= 0 {
		return fmt.Errorf("SHIKSHA_INGEST_POLL_INTERVAL must be positive")
	}
	if c.IngestPollTimeout.Std() < c.IngestPollInterval.Std() {
		return fmt.Errorf("SHIKSHA_INGEST_POLL_TIMEOUT must be at least the poll interval")
	}

	if c.TokenEncryptionKey != "" && len(c.TokenEncryptionKey) != 64 {
		return fmt.Errorf("SHIKSHA_TOKEN_KEY must be exactly 64 hex characters (32 bytes), got %d", len(c.TokenEncryptionKey))
	}

	return nil
}
