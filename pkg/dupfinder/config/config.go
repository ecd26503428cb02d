package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/cache"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/hasher"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// EnvPrefix prefixes environment overrides, e.g. DUPFINDER_LIMITS_AT_LEAST.
const EnvPrefix = "DUPFINDER"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// LimitsConfig holds the two mutually exclusive stop conditions.
// A nil AtLeast and an empty MaxSize mean unset; explicit zeros are kept.
type LimitsConfig struct {
	AtLeast *int   `mapstructure:"at_least" yaml:"at_least,omitempty"`
	MaxSize string `mapstructure:"max_size" yaml:"max_size"`
}

// CacheConfig configures the checksum cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// HashingConfig configures content hashing.
type HashingConfig struct {
	Algorithm  string  `mapstructure:"algorithm" yaml:"algorithm"`
	Workers    int     `mapstructure:"workers" yaml:"workers"`
	BufferSize string  `mapstructure:"buffer_size" yaml:"buffer_size"`
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	DefaultPath string        `mapstructure:"default_path" yaml:"default_path"`
	MinSize     string        `mapstructure:"min_size" yaml:"min_size"`
	Exclude     []string      `mapstructure:"exclude" yaml:"exclude"`
	Limits      LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Cache       CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Hashing     HashingConfig `mapstructure:"hashing" yaml:"hashing"`
	History     HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging     LoggingConfig `mapstructure:"logging" yaml:"logging"`

	file string
}

// FlagKeys maps command-line flag names to the configuration keys they
// override.
var FlagKeys = map[string]string{
	"min-size":      "min_size",
	"exclude":       "exclude",
	"at-least":      "limits.at_least",
	"max-size":      "limits.max_size",
	"algorithm":     "hashing.algorithm",
	"workers":       "hashing.workers",
	"buffer-size":   "hashing.buffer_size",
	"rate-limit":    "hashing.rate_limit",
	"cache-backend": "cache.backend",
}

// Load loads configuration from file and environment variables.
// When path is empty the file is looked up in:
//   - $XDG_CONFIG_HOME/dupfinder/config.yaml
//   - $HOME/.config/dupfinder/config.yaml
//
// A missing file is not an error. Environment variables are prefixed with
// DUPFINDER_ and use underscores for nesting (DUPFINDER_CACHE_BACKEND).
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with flags layered on top. Only flags named in
// FlagKeys that were set on the command line take effect.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()

	for _, p := range []*string{&cfg.DefaultPath, &cfg.Cache.Path, &cfg.History.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_path", DefaultPath)
	v.SetDefault("min_size", DefaultMinSize)
	v.SetDefault("exclude", DefaultExclusions)

	// limits.at_least has no default so that an explicit 0 can be told
	// apart from an absent setting.
	_ = v.BindEnv("limits.at_least")
	v.SetDefault("limits.max_size", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", DefaultBackend)
	v.SetDefault("cache.path", "") // empty means a path under CacheDir

	v.SetDefault("hashing.algorithm", hasher.DefaultAlgorithm)
	v.SetDefault("hashing.workers", 0) // zero means tuned to the machine
	v.SetDefault("hashing.buffer_size", DefaultBufferSize)
	v.SetDefault("hashing.rate_limit", 0.0)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // empty means HistoryDir
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponents)
}

// File returns the config file that was read, or "" when defaults were used.
func (c *Config) File() string { return c.file }

// Validate checks values that cannot be caught by unmarshalling.
func (c *Config) Validate() error {
	if _, err := c.Limit(); err != nil {
		return err
	}
	if _, err := c.MinSizeBytes(); err != nil {
		return &types.ConfigurationError{Field: "min_size", Reason: err.Error()}
	}
	if _, err := c.BufferSizeBytes(); err != nil {
		return &types.ConfigurationError{Field: "hashing.buffer_size", Reason: err.Error()}
	}
	if _, ok := hasher.Lookup(c.Hashing.Algorithm); !ok {
		return &types.ConfigurationError{
			Field:  "hashing.algorithm",
			Reason: fmt.Sprintf("unknown algorithm %q (available: %s)", c.Hashing.Algorithm, strings.Join(hasher.Available(), ", ")),
		}
	}
	if c.Hashing.Workers < 0 {
		return &types.ConfigurationError{Field: "hashing.workers", Reason: "must not be negative"}
	}
	if c.Hashing.RateLimit < 0 {
		return &types.ConfigurationError{Field: "hashing.rate_limit", Reason: "must not be negative"}
	}
	if !slices.Contains(cache.Backends(), c.Cache.Backend) {
		return &types.ConfigurationError{
			Field:  "cache.backend",
			Reason: fmt.Sprintf("unknown backend %q (available: %s)", c.Cache.Backend, strings.Join(cache.Backends(), ", ")),
		}
	}
	if c.History.RetentionDays < 0 {
		return &types.ConfigurationError{Field: "history.retention_days", Reason: "must not be negative"}
	}
	return nil
}

// Limit converts the limits section into a limit variant. Setting both
// at_least and max_size is a configuration error.
func (c *Config) Limit() (limit.Limit, error) {
	var budget *int64
	if c.Limits.MaxSize != "" {
		b, err := types.ParseSize(c.Limits.MaxSize)
		if err != nil {
			return limit.Limit{}, &types.ConfigurationError{Field: "limits.max_size", Reason: err.Error()}
		}
		budget = &b
	}
	return limit.FromOptions(c.Limits.AtLeast, budget)
}

// MinSizeBytes parses min_size.
func (c *Config) MinSizeBytes() (int64, error) {
	if c.MinSize == "" {
		return 0, nil
	}
	return types.ParseSize(c.MinSize)
}

// BufferSizeBytes parses hashing.buffer_size. Zero means "auto".
func (c *Config) BufferSizeBytes() (int, error) {
	if c.Hashing.BufferSize == "" || strings.EqualFold(c.Hashing.BufferSize, "auto") {
		return 0, nil
	}
	n, err := types.ParseSize(c.Hashing.BufferSize)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CachePath returns the configured cache location or the backend's default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath(c.Cache.Backend)
}

// HistoryPath returns the configured history directory or HistoryDir.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return HistoryDir()
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() (logging.Config, error) {
	rot := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		n, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, &types.ConfigurationError{Field: "logging.rotation.max_size", Reason: err.Error()}
		}
		rot.MaxSize = n
	}
	rot.MaxAge = c.Logging.Rotation.MaxAge
	rot.MaxBackups = c.Logging.Rotation.MaxBackups
	rot.Daily = c.Logging.Rotation.Daily

	path := c.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
	}
	return logging.Config{
		Level:      c.Logging.Level,
		Path:       path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# dupfinder configuration

# Directory searched when none is given on the command line
default_path: %s

# Files smaller than this are ignored
min_size: %s

# Glob patterns or paths to skip
exclude:
  - /proc
  - /sys
  - /dev
  - .git

# Stop conditions. Set at most one of them.
limits:
  # Stop after this many duplicate groups are confirmed
  # at_least: 3
  # Never select more than this many bytes for hashing ("" = unset)
  max_size: ""

# Checksum cache
cache:
  enabled: true
  # badger, sqlite or memory
  backend: %s
  # Empty means $XDG_CACHE_HOME/dupfinder/
  path: ""

# Content hashing
hashing:
  # %s
  algorithm: %s
  # 0 picks a worker count for this machine
  workers: 0
  # Read buffer per worker, or "auto" to size it from available memory
  buffer_size: %s
  # Files hashed per second (0 = unlimited)
  rate_limit: 0

# Run history
history:
  enabled: true
  # Empty means $XDG_DATA_HOME/dupfinder/history
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/dupfinder/dupfinder.log)
  path: ""
  rotation:
    max_size: %s
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    engine: info
    cache: info
    hasher: info
    walker: info
    cli: info
`, DefaultPath, DefaultMinSize, DefaultBackend, strings.Join(hasher.Available(), ", "),
		hasher.DefaultAlgorithm, DefaultBufferSize, DefaultRetentionDays, DefaultLogMaxSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/dupfinder/.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/dupfinder/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/dupfinder/ for the checksum cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// HistoryDir returns the default run history directory.
func HistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultCachePath returns where a backend keeps its data by default.
func DefaultCachePath(backend string) string {
	switch backend {
	case cache.BackendSQLite:
		return filepath.Join(CacheDir(), "checksums.db")
	case cache.BackendMemory:
		return ""
	default:
		return filepath.Join(CacheDir(), "checksums")
	}
}
