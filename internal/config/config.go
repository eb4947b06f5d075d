// Package config loads etude configuration from .etude/config.yaml.
// Defaults apply when the file is missing; environment variables override
// the file. The logging section is shared with internal/logging, which
// reads the same file on its own.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all etude configuration.
type Config struct {
	// HTTP API server
	Server ServerConfig `yaml:"server"`

	// API client used by the practice TUI and CLI commands
	Client ClientConfig `yaml:"client"`

	// Data directory and watcher
	Library LibraryConfig `yaml:"library"`

	// Logging (same keys internal/logging reads)
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	DatabasePath string `yaml:"database_path"`
}

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// LibraryConfig configures the song library on disk.
type LibraryConfig struct {
	DataDir       string `yaml:"data_dir"`
	WatchDebounce string `yaml:"watch_debounce"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			DatabasePath: filepath.Join(".etude", "practice.db"),
		},

		Client: ClientConfig{
			BaseURL:    "http://127.0.0.1:5000",
			Timeout:    "30s",
			MaxRetries: 3,
		},

		Library: LibraryConfig{
			DataDir:       "data",
			WatchDebounce: "2s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default path to .etude/config.yaml.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".etude", "config.yaml")
	}
	return filepath.Join(cwd, ".etude", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("ETUDE_DATA_DIR"); dir != "" {
		c.Library.DataDir = dir
	}
	if path := os.Getenv("ETUDE_DB"); path != "" {
		c.Server.DatabasePath = path
	}
	if host := os.Getenv("ETUDE_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("ETUDE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if url := os.Getenv("ETUDE_SERVER_URL"); url != "" {
		c.Client.BaseURL = url
	}
}

// GetServerAddr returns the host:port the server listens on.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetClientTimeout returns the client HTTP timeout as a duration.
func (c *Config) GetClientTimeout() time.Duration {
	d, err := time.ParseDuration(c.Client.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watcher debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Library.WatchDebounce)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Client.BaseURL == "" {
		return fmt.Errorf("client base URL not configured")
	}
	if c.Library.DataDir == "" {
		return fmt.Errorf("data directory not configured")
	}
	return nil
}
