// Package config provides YAML-based configuration loading for ttsched.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName optional logical name of the embedding application
	AppName string `mapstructure:"app_name"`

	// Workers is the worker pool size; 0 means runtime.GOMAXPROCS(0)
	Workers int `mapstructure:"workers"`

	// MaxPending bounds admitted-but-not-running tasks (ready + blocked);
	// 0 disables the bound and Submit never rejects for load
	MaxPending int `mapstructure:"max_pending"`

	// Store holds value store configuration
	Store StoreConfig `mapstructure:"store"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

// StoreConfig defines value store settings.
type StoreConfig struct {
	// Shards is the number of map shards; 0 picks the default
	Shards int `mapstructure:"shards"`

	// Isolation selects the codec used to copy values through the store:
	// "off" (default) stores references, "json"/"cbor" store encoded bytes
	// and decode a fresh value per Get
	Isolation string `mapstructure:"isolation"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName:    "ttsched",
		Workers:    0,
		MaxPending: 0,
		Store: StoreConfig{
			Shards:    64,
			Isolation: "off",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/ttsched.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// PoolSize resolves Workers to the effective slot count.
func (c *Config) PoolSize() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix TTSCHED and `.`/`-` are replaced
// with `_`. Example: TTSCHED_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TTSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("max_pending", cfg.MaxPending)
	v.SetDefault("store.shards", cfg.Store.Shards)
	v.SetDefault("store.isolation", cfg.Store.Isolation)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("TTSCHED_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `ttsched`
		v.SetConfigName("ttsched")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ttsched"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("invalid max_pending: %d", c.MaxPending)
	}
	if c.Store.Shards < 0 {
		return fmt.Errorf("invalid store.shards: %d", c.Store.Shards)
	}

	iso := strings.ToLower(strings.TrimSpace(c.Store.Isolation))
	switch iso {
	case "", "off", "json", "cbor":
		if iso == "" {
			iso = "off"
		}
		c.Store.Isolation = iso
	default:
		return fmt.Errorf("invalid store.isolation: %q", c.Store.Isolation)
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
