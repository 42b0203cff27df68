// Package config loads engine settings: built-in defaults, then an optional
// YAML file, then QUESTLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/nathoo/questline/engine/period"
	"github.com/nathoo/questline/logging"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "QUESTLINE_"

// Backend selects the key-value store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Config holds every setting.
type Config struct {
	GameDir string `yaml:"game_dir" env:"GAME_DIR"`
	SaveDir string `yaml:"save_dir" env:"SAVE_DIR"`

	Store      Backend `yaml:"store" env:"STORE"`
	SQLitePath string  `yaml:"sqlite_path" env:"SQLITE_PATH"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	Timezone string `yaml:"timezone" env:"TIMEZONE"`

	Reset period.Specs `yaml:"reset" envPrefix:"RESET_"`

	EvalTimeout    time.Duration `yaml:"eval_timeout" env:"EVAL_TIMEOUT"`
	ActorCacheSize int           `yaml:"actor_cache_size" env:"ACTOR_CACHE_SIZE"`

	AutoSave    bool   `yaml:"auto_save" env:"AUTO_SAVE"`
	AutoSaveKey string `yaml:"auto_save_key" env:"AUTO_SAVE_KEY"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SaveDir:        "saves",
		Store:          BackendFile,
		SQLitePath:     "questline.db",
		LogLevel:       "warn",
		Timezone:       "Local",
		Reset:          period.DefaultSpecs(),
		EvalTimeout:    100 * time.Millisecond,
		ActorCacheSize: 64,
		AutoSave:       true,
		AutoSaveKey:    "autosave",
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := period.New(c.Reset); err != nil {
		errs = append(errs, err)
	}
	if c.EvalTimeout < 0 {
		errs = append(errs, errors.New("eval_timeout must not be negative"))
	}
	if c.ActorCacheSize < 0 {
		errs = append(errs, errors.New("actor_cache_size must not be negative"))
	}
	if c.AutoSave && c.AutoSaveKey == "" {
		errs = append(errs, errors.New("auto_save needs an auto_save_key"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() slog.Level {
	lvl, _ := logging.ParseLevel(c.LogLevel)
	return lvl
}

// Location returns the timezone reset schedules are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SaveKey returns the autosave key, or "" when autosave is off.
func (c *Config) SaveKey() string {
	if !c.AutoSave {
		return ""
	}
	return c.AutoSaveKey
}
