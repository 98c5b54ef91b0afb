// Package config loads loom's YAML configuration and watches it for changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for loom.
type Config struct {
	// Shell is the command spawned for new sessions.
	Shell string   `yaml:"shell"`
	Args  []string `yaml:"args"`

	// Cols and Rows are the initial terminal dimensions.
	Cols uint16 `yaml:"cols"`
	Rows uint16 `yaml:"rows"`

	// Scrollback bounds the number of rows retained above the screen.
	Scrollback int `yaml:"scrollback"`

	// VaultPath is the SQLite file for block history. Empty disables persistence.
	VaultPath string `yaml:"vault_path"`

	// ListenAddr is the HTTP/WebSocket bind address for loom serve.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "bash"
	}
	return Config{
		Shell:      shell,
		Cols:       80,
		Rows:       24,
		Scrollback: 1000,
		ListenAddr: "127.0.0.1:8333",
		LogLevel:   "info",
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "loom.yaml"
	}
	return filepath.Join(home, ".config", "loom", "loom.yaml")
}

// Load reads the config file at path, filling unset fields from Default.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Scrollback < 0 {
		return fmt.Errorf("scrollback must be non-negative, got %d", c.Scrollback)
	}
	if c.Cols == 0 || c.Rows == 0 {
		return fmt.Errorf("cols and rows must be positive, got %dx%d", c.Cols, c.Rows)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
