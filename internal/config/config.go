package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables overriding file values
const EnvPrefix = "SOUP_"

// Config holds all application configuration
type Config struct {
	Environment           string         `koanf:"environment"`
	Telegram              TelegramConfig `koanf:"telegram"`
	Database              DatabaseConfig `koanf:"database"`
	Log                   LogConfig      `koanf:"log"`
	Quotes                QuotesConfig   `koanf:"quotes"`
	Session               SessionConfig  `koanf:"session"`
	AllowedChatIDs        []int64        `koanf:"allowed_chat_ids"`
	AutoLeaveUnauthorized bool           `koanf:"auto_leave_unauthorized"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token string `koanf:"token"`
	// Username of the bot itself, with or without the leading @.
	Username string `koanf:"username"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"` // optional, rotated by size
}

// QuotesConfig holds the quote archive tunables
type QuotesConfig struct {
	DeleteThreshold int    `koanf:"delete_threshold"`
	StatsLimit      int    `koanf:"stats_limit"`
	Timezone        string `koanf:"timezone"`
}

// SessionConfig controls direct-message browsing sessions
type SessionConfig struct {
	TTL             time.Duration `koanf:"ttl"`              // e.g., "12h"
	CleanupInterval time.Duration `koanf:"cleanup_interval"` // e.g., "10m"
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// Location resolves the configured timezone
func (c *QuotesConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid quotes timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps the configured level name to a slog level
func (c *LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from environment variables and config files
func Load(environment string) (*Config, error) {
	k := koanf.New(".")
	// Load defaults first (lowest priority)
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// Config file is optional
	configFile := fmt.Sprintf("config/%s.yaml", environment)
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		slog.Warn("could not load config file", "file", configFile, "error", err)
	}

	// Environment variables override config file values
	if err := k.Load(env.ProviderWithValue(EnvPrefix, "__", func(key string, value string) (string, interface{}) {
		finalKey := strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))

		// Slices arrive comma separated
		switch k.Get(finalKey).(type) {
		case []interface{}, []string, []int64:
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return finalKey, parts
		}

		return finalKey, value
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Environment = environment

	if _, err := cfg.Quotes.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaultConfig returns the default configuration values
func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		Log: LogConfig{
			Level: "info",
		},
		Quotes: QuotesConfig{
			DeleteThreshold: -5,
			StatsLimit:      5,
			Timezone:        "UTC",
		},
		Session: SessionConfig{
			TTL:             12 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
	}
}
