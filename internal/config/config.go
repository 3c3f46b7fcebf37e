package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Inference InferenceConfig
	Access    AccessConfig
	Session   SessionConfig
	Log       LogConfig
}

// ServerConfig holds admin HTTP server configuration.
// The /api/v1 routes are only mounted when AdminToken is set.
type ServerConfig struct {
	Host       string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port       int    `env:"SERVER_PORT" envDefault:"8080"`
	AdminToken string `env:"ADMIN_API_TOKEN"`
}

// DatabaseConfig holds key store configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/facepoke.db"`
}

// TelegramConfig holds bot API configuration.
type TelegramConfig struct {
	Token       string `env:"TELEGRAM_TOKEN"`
	BotUsername string `env:"TELEGRAM_BOT_USERNAME"`
}

// InferenceConfig holds remote synthesis service configuration.
// A zero Timeout keeps the HTTP transport default.
type InferenceConfig struct {
	URL        string        `env:"INFERENCE_URL"`
	ResultsDir string        `env:"INFERENCE_RESULTS_DIR" envDefault:"results"`
	Timeout    time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"0s"`
	FileShim   string        `env:"INFERENCE_FILE_SHIM"` // Path to a canned result image (disables real API)
}

// AccessConfig holds the admin allow-list.
type AccessConfig struct {
	AdminIDs []string `env:"ADMIN_IDS" envSeparator:","`
}

// SessionConfig holds conversation behavior configuration.
type SessionConfig struct {
	RecheckAccess bool `env:"SESSION_RECHECK_ACCESS" envDefault:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Telegram); err != nil {
		return nil, fmt.Errorf("parsing telegram config: %w", err)
	}
	if err := env.Parse(&cfg.Inference); err != nil {
		return nil, fmt.Errorf("parsing inference config: %w", err)
	}
	if err := env.Parse(&cfg.Access); err != nil {
		return nil, fmt.Errorf("parsing access config: %w", err)
	}
	if err := env.Parse(&cfg.Session); err != nil {
		return nil, fmt.Errorf("parsing session config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIEnabled reports whether the admin API should be mounted.
func (c *ServerConfig) APIEnabled() bool {
	return c.AdminToken != ""
}

// Validate checks the settings the bot server needs.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	// If using file shim, the inference URL is not required
	if c.Inference.FileShim == "" && c.Inference.URL == "" {
		return fmt.Errorf("INFERENCE_URL is required (or set INFERENCE_FILE_SHIM for testing)")
	}
	if c.Inference.ResultsDir == "" {
		return fmt.Errorf("INFERENCE_RESULTS_DIR must not be empty")
	}
	if c.Inference.Timeout < 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateStore checks only the storage settings. Tools that open the key
// store without running the bot use this instead of Validate.
func (c *Config) ValidateStore() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres", "bbolt":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3, postgres or bbolt, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	return nil
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.Inference.FileShim != ""
}
