package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer       string // Issuer claim for tokens (default: bookery)
	DatabaseFile string // Path to SQLite database file (default: ./bookery.db)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 720h)

	// Google federated login. Both must be set to enable the endpoints.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// External ranking service (OpenAI-compatible).
	RankBaseURL string
	RankAPIKey  string
	RankModel   string

	SearchCeiling int           // Searches allowed per user per window (default: 10)
	SearchWindow  time.Duration // Search admission window (default: 1m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Rate window sweep interval (default: 5m)
}

func LoadConfig() Config {
	return Config{
		Issuer:       getEnvOrDefault("BOOKERY_ISSUER", "bookery"),
		DatabaseFile: getEnvOrDefault("BOOKERY_DATABASE_FILE", "bookery.db"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		RankBaseURL: getEnvOrDefault("RANK_BASE_URL", "https://api.openai.com/v1"),
		RankAPIKey:  os.Getenv("RANK_API_KEY"),
		RankModel:   os.Getenv("RANK_MODEL"),

		SearchCeiling: getEnvIntOrDefault("SEARCH_CEILING", 10),
		SearchWindow:  getEnvDurationOrDefault("SEARCH_WINDOW", time.Minute),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
