// Package config handles supportdesk configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for supportdesk.
type Config struct {
	// API is the REST backend.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Live is the push channel.
	Live LiveConfig `yaml:"live" mapstructure:"live"`

	// UI settings
	UI UIConfig `yaml:"ui" mapstructure:"ui"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Drafts storage
	Drafts DraftsConfig `yaml:"drafts" mapstructure:"drafts"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// APIConfig contains backend settings.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Token is the operator bearer token.
	Token string `yaml:"token" mapstructure:"token"`

	// Timeout bounds a single request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LiveConfig contains live channel settings.
type LiveConfig struct {
	// BaseURL overrides the ws(s) origin derived from api.base_url.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64 `yaml:"read_limit" mapstructure:"read_limit"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
}

// ReconnectConfig enables reopening a dropped live channel.
type ReconnectConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	MinBackoff  time.Duration `yaml:"min_backoff" mapstructure:"min_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// UIConfig contains TUI settings.
type UIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// Locale selects role labels and date formatting (it, en).
	Locale string `yaml:"locale" mapstructure:"locale"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is the log file path. The TUI always logs here.
	File string `yaml:"file" mapstructure:"file"`
}

// DraftsConfig contains draft storage settings.
type DraftsConfig struct {
	// Path is the SQLite file holding unsent composer text. Empty disables drafts.
	Path string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Themes accepted by ui.theme.
var Themes = []string{"default", "high-contrast"}

// Locales accepted by ui.locale.
var Locales = []string{"it", "en"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		Live: LiveConfig{
			ReadLimit:        1 << 20,
			HandshakeTimeout: 10 * time.Second,
			Reconnect: ReconnectConfig{
				Enabled:     false,
				MinBackoff:  500 * time.Millisecond,
				MaxBackoff:  30 * time.Second,
				MaxAttempts: 5,
			},
		},
		UI: UIConfig{
			Theme:  "default",
			Locale: "it",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(StateDir(), "supportdesk.log"),
		},
		Drafts: DraftsConfig{
			Path: filepath.Join(StateDir(), "drafts.db"),
		},
	}
}

// StateDir is where supportdesk keeps logs, drafts and the last context.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "supportdesk")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "state", "supportdesk")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if err := checkURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if strings.TrimSpace(c.Live.BaseURL) != "" {
		if err := checkURL("live.base_url", c.Live.BaseURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Live.ReadLimit <= 0 {
		errs = append(errs, errors.New("live.read_limit must be positive"))
	}
	if c.Live.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("live.handshake_timeout must be positive"))
	}
	if r := c.Live.Reconnect; r.Enabled {
		if r.MinBackoff <= 0 {
			errs = append(errs, errors.New("live.reconnect.min_backoff must be positive"))
		}
		if r.MaxBackoff < r.MinBackoff {
			errs = append(errs, errors.New("live.reconnect.max_backoff must be at least min_backoff"))
		}
		if r.MaxAttempts < 0 {
			errs = append(errs, errors.New("live.reconnect.max_attempts must not be negative"))
		}
	}
	if !oneOf(c.UI.Theme, Themes) {
		errs = append(errs, fmt.Errorf("ui.theme must be one of %s", strings.Join(Themes, ", ")))
	}
	if !oneOf(c.UI.Locale, Locales) {
		errs = append(errs, fmt.Errorf("ui.locale must be one of %s", strings.Join(Locales, ", ")))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, errors.New("logging.format must be console or json"))
	}

	return errors.Join(errs...)
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if !oneOf(u.Scheme, schemes) {
		return fmt.Errorf("%s must use %s", key, strings.Join(schemes, " or "))
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", key)
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
