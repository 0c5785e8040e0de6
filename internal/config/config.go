package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	RedisURL   string
	JWTSecret  string
	JWTExpiry  time.Duration

	// APIBaseURL is the remote simulado API (question bank, scoring, persistence).
	APIBaseURL string
	APITimeout time.Duration

	ClockTick       time.Duration
	SessionClockTTL time.Duration

	SaveRetryMaxAttempts int
	SaveRetryBackoff     time.Duration

	RateLimitPerMinute int

	StubAPIPort  string
	StubFixtures string

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		GinMode:              getEnv("GIN_MODE", "debug"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "pretty"),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:            getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:            time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		APIBaseURL:           strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8090"), "/"),
		APITimeout:           time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 10)) * time.Second,
		ClockTick:            time.Duration(getEnvInt("CLOCK_TICK_MS", 1000)) * time.Millisecond,
		SessionClockTTL:      time.Duration(getEnvInt("SESSION_CLOCK_TTL_HOURS", 24)) * time.Hour,
		SaveRetryMaxAttempts: getEnvInt("SAVE_RETRY_MAX_ATTEMPTS", 3),
		SaveRetryBackoff:     time.Duration(getEnvInt("SAVE_RETRY_BACKOFF_MS", 2000)) * time.Millisecond,
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 240),
		StubAPIPort:          getEnv("STUB_API_PORT", "8090"),
		StubFixtures:         getEnv("STUB_FIXTURES", "internal/stubapi/testdata/simulados.yaml"),
		AllowedOrigins:       parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
