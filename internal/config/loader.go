package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SUPPORTDESK_API_TOKEN.
const EnvPrefix = "SUPPORTDESK"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
	overrides  map[string]bool
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		overrides: map[string]bool{},
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Unmarshal skips bound env vars for nested keys once a file is present.
	l.applyEnvOverrides(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func expandPaths(cfg *Config) {
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.Drafts.Path = expandTilde(cfg.Drafts.Path)
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "supportdesk"))
	}
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "supportdesk"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)
	bindEnvVars(v)
	v.AutomaticEnv()
}

func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.token", cfg.API.Token)
	v.SetDefault("api.timeout", cfg.API.Timeout)

	v.SetDefault("live.base_url", cfg.Live.BaseURL)
	v.SetDefault("live.read_limit", cfg.Live.ReadLimit)
	v.SetDefault("live.handshake_timeout", cfg.Live.HandshakeTimeout)
	v.SetDefault("live.reconnect.enabled", cfg.Live.Reconnect.Enabled)
	v.SetDefault("live.reconnect.min_backoff", cfg.Live.Reconnect.MinBackoff)
	v.SetDefault("live.reconnect.max_backoff", cfg.Live.Reconnect.MaxBackoff)
	v.SetDefault("live.reconnect.max_attempts", cfg.Live.Reconnect.MaxAttempts)

	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("ui.locale", cfg.UI.Locale)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)

	v.SetDefault("drafts.path", cfg.Drafts.Path)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// loadConfigFile reads the config file. A missing file is only an error when
// it was named explicitly.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && l.configFile == "" {
			return nil
		}
		return err
	}
	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set overrides a key; flags use this so they win over env and file.
func (l *Loader) Set(key string, value interface{}) {
	l.overrides[key] = true
	l.v.Set(key, value)
}

// Viper returns the underlying Viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

var envKeys = []string{
	"api.base_url",
	"api.token",
	"api.timeout",
	"live.base_url",
	"live.read_limit",
	"live.handshake_timeout",
	"live.reconnect.enabled",
	"live.reconnect.min_backoff",
	"live.reconnect.max_backoff",
	"live.reconnect.max_attempts",
	"ui.theme",
	"ui.locale",
	"logging.level",
	"logging.format",
	"logging.file",
	"drafts.path",
	"metrics.addr",
}

// EnvVar returns the environment variable bound to key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func bindEnvVars(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key, EnvVar(key))
	}
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v
	lookup := func(key string) bool {
		if l.overrides[key] {
			return false
		}
		_, ok := os.LookupEnv(EnvVar(key))
		return ok
	}

	if lookup("api.base_url") {
		cfg.API.BaseURL = v.GetString("api.base_url")
	}
	if lookup("api.token") {
		cfg.API.Token = v.GetString("api.token")
	}
	if lookup("api.timeout") {
		cfg.API.Timeout = v.GetDuration("api.timeout")
	}
	if lookup("live.base_url") {
		cfg.Live.BaseURL = v.GetString("live.base_url")
	}
	if lookup("live.read_limit") {
		cfg.Live.ReadLimit = v.GetInt64("live.read_limit")
	}
	if lookup("live.reconnect.enabled") {
		cfg.Live.Reconnect.Enabled = v.GetBool("live.reconnect.enabled")
	}
	if lookup("ui.locale") {
		cfg.UI.Locale = v.GetString("ui.locale")
	}
	if lookup("ui.theme") {
		cfg.UI.Theme = v.GetString("ui.theme")
	}
	if lookup("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if lookup("logging.file") {
		cfg.Logging.File = v.GetString("logging.file")
	}
	if lookup("drafts.path") {
		cfg.Drafts.Path = v.GetString("drafts.path")
	}
	if lookup("metrics.addr") {
		cfg.Metrics.Addr = v.GetString("metrics.addr")
	}
}
