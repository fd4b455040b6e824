// Package config loads runtime settings from an optional YAML file with
// PERSONALTASKS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PERSONALTASKS_ADDR.
const EnvPrefix = "PERSONALTASKS"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "personaltasks.yaml"

// DefaultSecret is the placeholder signing secret written by Default. It is
// public, so the HTTP API refuses to start with it.
const DefaultSecret = "change-me"

// Config holds every runtime setting.
type Config struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Store     string `mapstructure:"store" yaml:"store"`
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	PrefsPath string `mapstructure:"prefs_path" yaml:"prefs_path"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
	LocalUser string `mapstructure:"local_user" yaml:"local_user"`
	Auth      Auth   `mapstructure:"auth" yaml:"auth"`
}

// Auth configures bearer token verification.
type Auth struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:      ":8080",
		Store:     StoreSQLite,
		DBPath:    "data/personaltasks.db",
		PrefsPath: defaultPrefsPath(),
		LogLevel:  "info",
		LocalUser: "local",
		Auth: Auth{
			Secret:   DefaultSecret,
			Issuer:   "personaltasks",
			TokenTTL: 24 * time.Hour,
		},
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".personaltasks", "prefs.toml")
	}
	return filepath.Join(dir, "personaltasks", "prefs.toml")
}

// Load reads path (or DefaultFile when path is empty and that file exists),
// then applies environment overrides on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("store", cfg.Store)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("prefs_path", cfg.PrefsPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("local_user", cfg.LocalUser)
	v.SetDefault("auth.secret", cfg.Auth.Secret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.token_ttl", cfg.Auth.TokenTTL)
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreSQLite, StoreMemory))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret must not be empty"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// Level maps LogLevel onto a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the built-in settings to path as YAML. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	cfg := Default()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}
