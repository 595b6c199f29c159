package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Addr        string        `yaml:"addr"`         // TCP bind address (e.g. ":12345")
	WSAddr      string        `yaml:"ws_addr"`      // WebSocket bind address (empty = disabled)
	MetricsAddr string        `yaml:"metrics_addr"` // HTTP bind address for /metrics (empty = disabled)
	UsersFile   string        `yaml:"users_file"`   // user store path
	Backend     string        `yaml:"backend"`      // "file" or "sqlite"
	IdleTimeout time.Duration `yaml:"idle_timeout"` // per-connection read deadline (0 = none)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":12345",
		MetricsAddr: ":12346",
		UsersFile:   "users.db",
		Backend:     "file",
	}
}

// LoadConfig overlays a YAML config file onto cfg. Missing keys keep their
// current values.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("server: parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server: addr must not be empty")
	}
	switch c.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("server: unknown backend %q (valid: file, sqlite)", c.Backend)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("server: idle_timeout must not be negative")
	}
	return nil
}
