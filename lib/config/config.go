// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for WhatsWeb components.
//
// Configuration is loaded from a single file specified by:
//   - WHATSWEB_CONFIG environment variable, or
//   - --config flag passed to the command
//
// When neither is given, the built-in defaults apply: a file-backed
// store under ~/.whatsweb. The config file is the single source of
// truth; environment variables do not override individual values. The
// only expansion performed is ${HOME} and similar path variables for
// portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for WhatsWeb.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the session store backend.
	Store StoreConfig `yaml:"store"`

	// Pairing configures pairing image generation.
	Pairing PairingConfig `yaml:"pairing"`

	// Client configures the client's wait loop.
	Client ClientConfig `yaml:"client"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for WhatsWeb data.
	// Default: ~/.whatsweb
	Root string `yaml:"root"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	// Backend is one of "file", "sqlite", "mysql".
	// Default: file
	Backend string `yaml:"backend"`

	// File configures the file backend.
	File FileStoreConfig `yaml:"file"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteStoreConfig `yaml:"sqlite"`

	// MySQL configures the MySQL backend.
	MySQL MySQLStoreConfig `yaml:"mysql"`
}

// FileStoreConfig configures the file store backend.
type FileStoreConfig struct {
	// Dir is where session and message JSON files live.
	// Default: ${WHATSWEB_ROOT}/sessions
	Dir string `yaml:"dir"`
}

// SQLiteStoreConfig configures the SQLite store backend.
type SQLiteStoreConfig struct {
	// Path is the database file path.
	// Default: ${WHATSWEB_ROOT}/whatsweb.db
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero means the default.
	PoolSize int `yaml:"pool_size"`
}

// MySQLStoreConfig configures the MySQL store backend.
type MySQLStoreConfig struct {
	// Host is the server hostname. Default: localhost
	Host string `yaml:"host"`

	// Port is the server port. Default: 3306
	Port int `yaml:"port"`

	// User is the account name.
	User string `yaml:"user"`

	// Password is the account password.
	Password string `yaml:"password"`

	// Database is the schema name. Default: whatsweb
	Database string `yaml:"database"`
}

// PairingConfig configures pairing image generation.
type PairingConfig struct {
	// Dir is where pairing images are written.
	// Default: ${WHATSWEB_ROOT}/qr_codes
	Dir string `yaml:"dir"`

	// ImageSize is the rendered image edge in pixels. Zero means the
	// encoder default.
	ImageSize int `yaml:"image_size"`
}

// ClientConfig configures the client's wait loop.
type ClientConfig struct {
	// PollInterval is how often the authentication wait re-checks the
	// session, as a Go duration string.
	// Default: 2s
	PollInterval string `yaml:"poll_interval"`

	// AuthTimeout is how long connect-and-wait flows wait for the
	// linked device before giving up, as a Go duration string.
	// Default: 60s
	AuthTimeout string `yaml:"auth_timeout"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: info
	Level string `yaml:"level"`

	// Format is "text" or "json".
	// Default: text
	Format string `yaml:"format"`
}

// Default returns the default configuration: a file-backed store under
// ~/.whatsweb, two-second polling, one-minute authentication timeout.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".whatsweb")

	return &Config{
		Paths: PathsConfig{
			Root: defaultRoot,
		},
		Store: StoreConfig{
			Backend: "file",
			File: FileStoreConfig{
				Dir: filepath.Join(defaultRoot, "sessions"),
			},
			SQLite: SQLiteStoreConfig{
				Path: filepath.Join(defaultRoot, "whatsweb.db"),
			},
			MySQL: MySQLStoreConfig{
				Host:     "localhost",
				Port:     3306,
				Database: "whatsweb",
			},
		},
		Pairing: PairingConfig{
			Dir: filepath.Join(defaultRoot, "qr_codes"),
		},
		Client: ClientConfig{
			PollInterval: "2s",
			AuthTimeout:  "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the WHATSWEB_CONFIG environment
// variable, falling back to the defaults when it is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("WHATSWEB_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WHATSWEB_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["WHATSWEB_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Store.File.Dir = expandVars(c.Store.File.Dir, vars)
	c.Store.SQLite.Path = expandVars(c.Store.SQLite.Path, vars)
	c.Pairing.Dir = expandVars(c.Pairing.Dir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.File.Dir == "" {
			errs = append(errs, fmt.Errorf("store.file.dir is required"))
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("store.sqlite.path is required"))
		}
	case "mysql":
		if c.Store.MySQL.Host == "" {
			errs = append(errs, fmt.Errorf("store.mysql.host is required"))
		}
		if c.Store.MySQL.User == "" {
			errs = append(errs, fmt.Errorf("store.mysql.user is required"))
		}
		if c.Store.MySQL.Database == "" {
			errs = append(errs, fmt.Errorf("store.mysql.database is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of: file, sqlite, mysql"))
	}

	if _, err := time.ParseDuration(c.Client.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("client.poll_interval: %w", err))
	}
	if _, err := time.ParseDuration(c.Client.AuthTimeout); err != nil {
		errs = append(errs, fmt.Errorf("client.auth_timeout: %w", err))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}
	formats := []string{"text", "json"}
	if !contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PollInterval returns the parsed wait-loop interval. Call Validate
// first; an unparsable value falls back to two seconds here.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Client.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// AuthTimeout returns the parsed authentication wait deadline. Call
// Validate first; an unparsable value falls back to one minute here.
func (c *Config) AuthTimeout() time.Duration {
	d, err := time.ParseDuration(c.Client.AuthTimeout)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Pairing.Dir,
	}
	if c.Store.Backend == "file" {
		paths = append(paths, c.Store.File.Dir)
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
