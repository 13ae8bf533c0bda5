// Package config loads the fundi client configuration from a YAML or JSON
// file, with ${VAR:-default} expansion and .env support.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fundiconnect/fundi-go/internal/credstore"
	"github.com/fundiconnect/fundi-go/internal/logging"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfigFileNotFound is returned when the config file does not exist
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the full client configuration
type Config struct {
	API        APIConfig        `yaml:"api" json:"api"`
	Store      credstore.Config `yaml:"store" json:"store"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Sentry     SentryConfig     `yaml:"sentry" json:"sentry"`
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`
}

// APIConfig configures the backend connection
type APIConfig struct {
	BaseURL string `yaml:"base_url" json:"baseUrl"`

	// Timeout is a Go duration string, e.g. "30s"
	Timeout string `yaml:"timeout" json:"timeout"`

	// Retry enables retries of connection errors and 5xx responses
	Retry *types.RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default
func (a APIConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return types.DefaultTimeout
	}
	return d
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level string                      `yaml:"level" json:"level"`
	File  *logging.FileRotationConfig `yaml:"file,omitempty" json:"file,omitempty"`
}

// SentryConfig configures error reporting. Empty DSN disables it.
type SentryConfig struct {
	DSN         string `yaml:"dsn" json:"dsn"`
	Environment string `yaml:"environment" json:"environment"`
}

// NavigationConfig configures the login redirect
type NavigationConfig struct {
	LoginRoute        string `yaml:"login_route" json:"loginRoute"`
	ShowExpiredNotice bool   `yaml:"show_expired_notice" json:"showExpiredNotice"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file. The format follows the file
// extension (.yaml, .yml or .json).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrConfigFileNotFound, path)
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	data = []byte(ExpandEnv(string(data)))

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON config file")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML config file")
		}
	default:
		return nil, errors.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it is non-empty, otherwise returns Default
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "file", "leveldb":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis store")
		}
	default:
		return errors.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.API.Timeout != "" {
		if _, err := time.ParseDuration(c.API.Timeout); err != nil {
			return errors.Wrap(err, "invalid api.timeout")
		}
	}
	if !strings.HasPrefix(c.Navigation.LoginRoute, "/") {
		return errors.Errorf("navigation.login_route must start with /: %q", c.Navigation.LoginRoute)
	}
	return nil
}

// applyDefaults sets default values for optional fields
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = types.DefaultBaseURL
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "file"
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = "fundi"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = "production"
	}
	if cfg.Navigation.LoginRoute == "" {
		cfg.Navigation.LoginRoute = types.DefaultLoginRoute
	}
}
