package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken   string // used by the CLI; API callers bring their own token
	GitHubAPIURL  string
	GitHubTimeout time.Duration

	// Storage
	StorageType string // "sqlite", "postgres" or "memory"
	SQLitePath  string
	PostgresURL string

	// Narrative generator
	XAIAPIKey        string
	NarrativeBaseURL string
	NarrativeModel   string
	NarrativeTimeout time.Duration

	// Cache
	CacheTTL time.Duration

	// API Server
	APIPort  string
	APIHost  string
	GinMode  string
	LogLevel string

	// CLI
	APIEndpoint string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		GitHubToken:      getEnv("GITHUB_TOKEN", ""),
		GitHubAPIURL:     getEnv("GITHUB_API_URL", "https://api.github.com/"),
		GitHubTimeout:    getDuration("GITHUB_TIMEOUT", 10*time.Second),
		StorageType:      strings.ToLower(getEnv("STORAGE_TYPE", StorageSQLite)),
		SQLitePath:       getEnv("SQLITE_PATH", "./compatibility.db"),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		XAIAPIKey:        getEnv("XAI_API_KEY", ""),
		NarrativeBaseURL: getEnv("NARRATIVE_BASE_URL", "https://api.x.ai/v1"),
		NarrativeModel:   getEnv("NARRATIVE_MODEL", "grok-beta"),
		NarrativeTimeout: getDuration("NARRATIVE_TIMEOUT", 60*time.Second),
		CacheTTL:         getDuration("CACHE_TTL", 24*time.Hour),
		APIPort:          getEnv("API_PORT", "8080"),
		APIHost:          getEnv("API_HOST", "localhost"),
		GinMode:          getEnv("GIN_MODE", "release"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		APIEndpoint:      getEnv("API_ENDPOINT", "http://localhost:8080"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a Go duration ("90s", "24h"); invalid or non-positive
// values fall back to the default
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration", "key", key, "value", raw)
		return defaultValue
	}
	return d
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate validates the configuration used by the server
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageSQLite:
		if c.SQLitePath == "" {
			return &ConfigError{Field: "SQLITE_PATH", Message: "SQLite path is required when STORAGE_TYPE is 'sqlite'"}
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
		}
	case StorageMemory:
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite', 'postgres' or 'memory'"}
	}
	if c.APIPort == "" {
		return &ConfigError{Field: "API_PORT", Message: "API port is required"}
	}
	return nil
}

// ValidateCLI additionally requires a GitHub token for local comparisons
func (c *Config) ValidateCLI() error {
	if c.GitHubToken == "" {
		return &ConfigError{Field: "GITHUB_TOKEN", Message: "GitHub token is required"}
	}
	return c.Validate()
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
