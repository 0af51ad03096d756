// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`

	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Limits struct {
		DefaultPageSize int `yaml:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size"`
		TokenAttempts   int `yaml:"token_attempts"`
	} `yaml:"limits"`
}

// Environment variables that override values read from the file.
const (
	EnvAddr           = "ACORN_ADDR"
	EnvDatabaseDriver = "ACORN_DATABASE_DRIVER"
	EnvDatabaseURL    = "ACORN_DATABASE_URL"
	EnvRabbitMQURL    = "ACORN_RABBITMQ_URL"
	EnvJWTSecret      = "ACORN_JWT_SECRET"
	EnvLogLevel       = "ACORN_LOG_LEVEL"
)

// LoadConfig reads path (a missing file is allowed when the environment
// supplies everything), applies env overrides and defaults, and validates.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Server.Addr, EnvAddr)
	override(&c.Database.Driver, EnvDatabaseDriver)
	override(&c.Database.URL, EnvDatabaseURL)
	override(&c.RabbitMQ.URL, EnvRabbitMQURL)
	override(&c.Auth.JWTSecret, EnvJWTSecret)
	override(&c.Log.Level, EnvLogLevel)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "acorn.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Limits.DefaultPageSize <= 0 {
		c.Limits.DefaultPageSize = 10
	}
	if c.Limits.MaxPageSize <= 0 {
		c.Limits.MaxPageSize = 100
	}
	if c.Limits.TokenAttempts <= 0 {
		c.Limits.TokenAttempts = 5
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if c.Limits.DefaultPageSize > c.Limits.MaxPageSize {
		return fmt.Errorf("config: default_page_size %d exceeds max_page_size %d",
			c.Limits.DefaultPageSize, c.Limits.MaxPageSize)
	}
	return nil
}
