// Package config loads nexa settings from ~/.nexa/config.yaml, a .env file
// and NEXA_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nexahealth/nexa/pkg/domain"
)

// Ephemeral store scopes.
const (
	ScopeShell   = "shell"
	ScopeProcess = "process"
)

// Config holds all nexa settings.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Guest   GuestConfig   `yaml:"guest"`
	Logging LoggingConfig `yaml:"logging"`
	// StateDir holds the durable store, logs and this config file.
	StateDir string `yaml:"state_dir"`
}

// APIConfig describes the backend. BaseURL has no default: every deployment
// must name its own.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Principal string `yaml:"principal"` // user, pharmacy
	Timeout   string `yaml:"timeout"`
}

// SessionConfig tunes the session lifecycle.
type SessionConfig struct {
	RefreshInterval string `yaml:"refresh_interval"`
	EphemeralScope  string `yaml:"ephemeral_scope"` // shell, process
}

// GuestConfig tunes guest sessions.
type GuestConfig struct {
	Limit int `yaml:"limit"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	File string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Principal: domain.UserPrincipal.Name,
			Timeout:   "15s",
		},
		Session: SessionConfig{
			RefreshInterval: "14m",
			EphemeralScope:  ScopeShell,
		},
		Guest:    GuestConfig{Limit: 3},
		StateDir: DefaultStateDir(),
	}
}

// DefaultStateDir is ~/.nexa, or .nexa in the working directory when the
// home directory is unknown.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nexa"
	}
	return filepath.Join(home, ".nexa")
}

// DefaultPath is the config file inside the default state dir.
func DefaultPath() string {
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

// Load reads the YAML file at path (a missing file means defaults), loads
// .env from the working directory if present, then applies NEXA_*
// environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// ReadFile reads only the YAML file at path over the defaults. A missing file
// means defaults. Environment overrides are not applied, so the result can be
// edited and saved back.
func ReadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NEXA_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("NEXA_PRINCIPAL"); v != "" {
		c.API.Principal = v
	}
	if v := os.Getenv("NEXA_REQUEST_TIMEOUT"); v != "" {
		c.API.Timeout = v
	}
	if v := os.Getenv("NEXA_REFRESH_INTERVAL"); v != "" {
		c.Session.RefreshInterval = v
	}
	if v := os.Getenv("NEXA_EPHEMERAL_SCOPE"); v != "" {
		c.Session.EphemeralScope = v
	}
	if v := os.Getenv("NEXA_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("NEXA_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("NEXA_GUEST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Guest.Limit = n
		}
	}
}

// Keys lists the settings Get and Set accept.
var Keys = []string{
	"api.base_url",
	"api.principal",
	"api.timeout",
	"session.refresh_interval",
	"session.ephemeral_scope",
	"guest.limit",
	"logging.file",
	"state_dir",
}

// Get returns the setting named key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api.base_url":
		return c.API.BaseURL, nil
	case "api.principal":
		return c.API.Principal, nil
	case "api.timeout":
		return c.API.Timeout, nil
	case "session.refresh_interval":
		return c.Session.RefreshInterval, nil
	case "session.ephemeral_scope":
		return c.Session.EphemeralScope, nil
	case "guest.limit":
		return strconv.Itoa(c.Guest.Limit), nil
	case "logging.file":
		return c.Logging.File, nil
	case "state_dir":
		return c.StateDir, nil
	}
	return "", unknownKey(key)
}

// Set parses value and stores it under key. Invalid values leave c unchanged.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "api.base_url":
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid API base URL: %q", value)
		}
		c.API.BaseURL = strings.TrimRight(value, "/")
	case "api.principal":
		p, ok := domain.PrincipalByName(value)
		if !ok {
			return fmt.Errorf("invalid principal: %s (valid: user, pharmacy)", value)
		}
		c.API.Principal = p.Name
	case "api.timeout", "session.refresh_interval":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration for %s: %q", key, value)
		}
		if key == "api.timeout" {
			c.API.Timeout = value
		} else {
			c.Session.RefreshInterval = value
		}
	case "session.ephemeral_scope":
		switch strings.ToLower(value) {
		case ScopeShell, ScopeProcess:
			c.Session.EphemeralScope = strings.ToLower(value)
		default:
			return fmt.Errorf("invalid ephemeral scope: %s (valid: %s, %s)", value, ScopeShell, ScopeProcess)
		}
	case "guest.limit":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid guest limit: %q", value)
		}
		c.Guest.Limit = n
	case "logging.file":
		c.Logging.File = value
	case "state_dir":
		if value == "" {
			return errors.New("state_dir must not be empty")
		}
		c.StateDir = value
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// GetTimeout returns the request timeout.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GetRefreshInterval returns the background refresh period.
func (c *Config) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Session.RefreshInterval)
	if err != nil || d <= 0 {
		return 14 * time.Minute
	}
	return d
}

// GetPrincipal resolves the configured principal.
func (c *Config) GetPrincipal() domain.Principal {
	p, ok := domain.PrincipalByName(c.API.Principal)
	if !ok {
		return domain.UserPrincipal
	}
	return p
}

// StorePath is the durable key/value store.
func (c *Config) StorePath() string {
	return filepath.Join(c.StateDir, "store.json")
}

// LogPath is the rotated log file.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.StateDir, "nexa.log")
}

// Validate checks the settings needed to talk to the backend.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API base URL not configured (set NEXA_API_URL or api.base_url)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.API.BaseURL)
	}
	if _, ok := domain.PrincipalByName(c.API.Principal); !ok {
		return fmt.Errorf("invalid principal: %s (valid: user, pharmacy)", c.API.Principal)
	}
	switch strings.ToLower(c.Session.EphemeralScope) {
	case ScopeShell, ScopeProcess:
	default:
		return fmt.Errorf("invalid ephemeral scope: %s (valid: %s, %s)", c.Session.EphemeralScope, ScopeShell, ScopeProcess)
	}
	if c.Guest.Limit < 0 {
		return fmt.Errorf("guest limit must not be negative: %d", c.Guest.Limit)
	}
	return nil
}
