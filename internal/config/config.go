// Package config provides YAML-based configuration loading for Switchyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file.
const (
	EnvJWTSecret  = "SWITCHYARD_JWT_SECRET"
	EnvDBPassword = "SWITCHYARD_DB_PASSWORD"
)

// DefaultLists are created on every new board unless configured otherwise.
var DefaultLists = []string{"To Do", "Development", "Testing", "Review", "Deployment", "Done"}

// Config is the top-level Switchyard configuration, loaded from switchyard.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Ordering OrderingConfig `yaml:"ordering"`
	Boards   BoardsConfig   `yaml:"boards"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the backing store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
}

// RedisConfig enables cross-instance fan-out when Addr is set.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// OrderingConfig controls how position gaps left by deletes are handled.
type OrderingConfig struct {
	CompactOnDelete bool   `yaml:"compact_on_delete"`
	CompactSchedule string `yaml:"compact_schedule"`
}

// BoardsConfig holds board creation defaults.
type BoardsConfig struct {
	DefaultLists []string `yaml:"default_lists"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TokenTTL returns the parsed token lifetime. Parse has already validated it.
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenTTL)
	return d
}

// ShutdownTimeout returns the parsed graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvJWTSecret); ok && v != "" {
		c.Auth.JWTSecret = v
	}
	if v, ok := os.LookupEnv(EnvDBPassword); ok && v != "" {
		c.Database.Password = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "switchyard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "switchyard"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = "720h"
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = "switchyard:board:"
	}
	if len(c.Boards.DefaultLists) == 0 {
		c.Boards.DefaultLists = append([]string(nil), DefaultLists...)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if d, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout %q is not a positive duration", c.Server.ShutdownTimeout))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required (or set "+EnvJWTSecret+")")
	}
	if d, err := time.ParseDuration(c.Auth.TokenTTL); err != nil || d <= 0 {
		errs = append(errs, fmt.Sprintf("auth.token_ttl %q is not a positive duration", c.Auth.TokenTTL))
	}
	if c.Ordering.CompactSchedule != "" {
		if _, err := cron.ParseStandard(c.Ordering.CompactSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("ordering.compact_schedule: %v", err))
		}
	}
	for i, name := range c.Boards.DefaultLists {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("boards.default_lists[%d] is empty", i))
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
