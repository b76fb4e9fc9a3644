// Package config provides configuration management for netinit.
//
// Config file locations (priority order):
//  1. $NETINIT_CONFIG
//  2. netinit.yaml next to the topology file
//  3. ./netinit.yaml
//  4. $XDG_CONFIG_HOME/netinit/config.yaml
//  5. ~/.config/netinit/config.yaml
//  6. /etc/netinit/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultShutdownTimeout = 5 * time.Second
	DefaultDatabasePath    = "./netinit.db"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

var validate = validator.New()

// Load finds and loads the config file for the network at topologyPath, or
// returns defaults if none found
func Load(topologyPath string) (*Config, string, error) {
	path := FindConfigPath(topologyPath)

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Shutdown: ShutdownConfig{Timeout: Duration(DefaultShutdownTimeout)},
		Log:      LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Database: DatabaseConfig{Path: DefaultDatabasePath},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = Duration(DefaultShutdownTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	for _, e := range validationErrs {
		return fmt.Errorf("validate config: %s: failed %q (got %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Topology: %s, Shutdown timeout: %s\n", orNone(c.Topology.Path), c.Shutdown.Timeout.Duration())
	summary += fmt.Sprintf("Ledger: %s, Metrics: %s, SSE: %s, Publish: %s, API: %s",
		orNone(c.Database.Path), orNone(c.Metrics.Addr), orNone(c.Events.SSEAddr), orNone(c.Events.PublishAddr), orNone(c.API.Addr))
	for kind, variants := range c.Selection {
		summary += fmt.Sprintf("\nSelection %s: %v", kind, variants)
	}

	return summary
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
