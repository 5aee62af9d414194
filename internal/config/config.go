// Package config loads the service configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultConfigPath is used when no path is supplied on the command line or
// via the environment.
const defaultConfigPath = "config.yaml"

// envConfigPath overrides the config file location when set.
const envConfigPath = "COVERWATCH_CONFIG"

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"` // Bind address; empty means all interfaces.
	Port int    `yaml:"port"` // Listen port.
}

// DatabaseConfig points at the backing store. The DSN scheme selects the
// dialect: postgres:// for PostgreSQL, anything else is treated as SQLite.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig points at the optional evaluation result cache. An empty Addr
// disables caching entirely.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BootstrapAdmin seeds the first admin account on startup when no admins
// exist yet. Ignored once any admin row is present.
type BootstrapAdmin struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AuthConfig controls admin API authentication.
type AuthConfig struct {
	JWTSecret   string         `yaml:"jwt-secret"`
	TokenExpiry Duration       `yaml:"token-expiry"`
	Bootstrap   BootstrapAdmin `yaml:"bootstrap-admin"`
}

// LogConfig controls log verbosity and optional file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name; default info.
	File       string `yaml:"file"`        // Rotated log file path; empty logs to stdout only.
	MaxSizeMB  int    `yaml:"max-size"`    // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max-backups"` // Rotated files to retain.
	MaxAgeDays int    `yaml:"max-age"`     // Days to retain rotated files.
	Compress   bool   `yaml:"compress"`    // Gzip rotated files.
}

// Config is the root of the service configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ResolveConfigPath returns the effective config file path: the explicit
// argument if non-empty, then the environment override, then the default.
func ResolveConfigPath(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if fromEnv := strings.TrimSpace(os.Getenv(envConfigPath)); fromEnv != "" {
		return fromEnv
	}
	return defaultConfigPath
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	raw, errRead := os.ReadFile(filepath.Clean(path))
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	cfg := &Config{}
	if errDecode := yaml.Unmarshal(raw, cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}
	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8318
	}
	if c.Auth.TokenExpiry <= 0 {
		c.Auth.TokenExpiry = Duration(12 * time.Hour)
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 28
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: auth.jwt-secret is required")
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
