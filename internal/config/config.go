package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string // HTTP API port
	ChatPort string // chat TCP port
	Env      string

	DatabaseURL  string // PostgreSQL; takes precedence when set
	DatabasePath string // SQLite fallback
	RedisURL     string // optional, enables rate limiting

	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		ChatPort:     getEnv("CHAT_PORT", "8081"),
		Env:          getEnv("ENV", "development"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: os.Getenv("DATABASE_PATH"),
		RedisURL:     os.Getenv("REDIS_URL"),
		JWTSecret:    getEnv("JWT_SECRET", "chat_jwt_secret"),
		TokenTTL:     14 * 24 * time.Hour,
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}

	// In production, require an explicit secret
	if cfg.Env == "production" {
		if os.Getenv("JWT_SECRET") == "" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
