// Package config loads and saves mergen settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel              = "gemini-2.0-flash"
	DefaultBaseURL            = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultTimeout            = 60 * time.Second
	DefaultRefreshSchedule    = "@every 6h"
	DefaultMaxProfileCommands = 50

	// EnvFile is read from the working directory. Real environment variables win over it.
	EnvFile = ".env"
)

// Config is the settings object handed to every component that needs it
type Config struct {
	DBPath             string        `yaml:"db_path,omitempty"`
	APIKey             string        `yaml:"api_key,omitempty"`
	AIEnabled          bool          `yaml:"ai_enabled"`
	Model              string        `yaml:"model"`
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	RefreshSchedule    string        `yaml:"refresh_schedule"`
	MaxProfileCommands int           `yaml:"max_profile_commands"`
}

func DefaultConfig() *Config {
	return &Config{
		AIEnabled:          true,
		Model:              DefaultModel,
		BaseURL:            DefaultBaseURL,
		Timeout:            DefaultTimeout,
		RefreshSchedule:    DefaultRefreshSchedule,
		MaxProfileCommands: DefaultMaxProfileCommands,
	}
}

// Dir returns $XDG_CONFIG_HOME/mergen, falling back to ~/.config/mergen
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mergen")
	}
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".config", "mergen")
}

// Path returns the default config file location
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path (Path() when empty), then applies
// .env and environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	dotenv, err := godotenv.Read(EnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", EnvFile, err)
	}

	cfg.applyEnv(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	})
	cfg.applyDefaults()

	return cfg, nil
}

// LoadFile reads only the config file, without .env or environment
// overrides, so a later Save does not persist values that came from the
// environment.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if key := getenv("MERGEN_API_KEY"); key != "" {
		c.APIKey = key
	}
	if path := getenv("MERGEN_DB"); path != "" {
		c.DBPath = path
	}
	if enabled := getenv("MERGEN_AI_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			c.AIEnabled = parsed
		}
	}
	if model := getenv("MERGEN_MODEL"); model != "" {
		c.Model = model
	}
	if url := getenv("MERGEN_BASE_URL"); url != "" {
		c.BaseURL = url
	}
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(c.RefreshSchedule) == "" {
		c.RefreshSchedule = DefaultRefreshSchedule
	}
	if c.MaxProfileCommands <= 0 {
		c.MaxProfileCommands = DefaultMaxProfileCommands
	}
}

// HasCredential reports whether an API key is configured
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Save writes cfg to path (Path() when empty). The file may hold a
// credential, so it is only readable by the owner.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set updates one field by its YAML key, used by `mergen config set`
func (c *Config) Set(key, value string) error {
	switch key {
	case "db_path":
		c.DBPath = value
	case "api_key":
		c.APIKey = value
	case "ai_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid ai_enabled %q: %w", value, err)
		}
		c.AIEnabled = b
	case "model":
		c.Model = value
	case "base_url":
		c.BaseURL = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", value, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid timeout %q: must be positive", value)
		}
		c.Timeout = d
	case "refresh_schedule":
		c.RefreshSchedule = value
	case "max_profile_commands":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid max_profile_commands %q", value)
		}
		c.MaxProfileCommands = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Keys lists the settable keys in file order
var Keys = []string{
	"db_path",
	"api_key",
	"ai_enabled",
	"model",
	"base_url",
	"timeout",
	"refresh_schedule",
	"max_profile_commands",
}

// Get returns the display value of one key. The API key is masked.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "api_key":
		if !c.HasCredential() {
			return "", nil
		}
		return "********", nil
	case "ai_enabled":
		return strconv.FormatBool(c.AIEnabled), nil
	case "model":
		return c.Model, nil
	case "base_url":
		return c.BaseURL, nil
	case "timeout":
		return c.Timeout.String(), nil
	case "refresh_schedule":
		return c.RefreshSchedule, nil
	case "max_profile_commands":
		return strconv.Itoa(c.MaxProfileCommands), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}
