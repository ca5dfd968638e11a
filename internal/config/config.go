// Package config provides configuration management for CoinScribe.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	// OpenAI settings
	OpenAIAPIKey   string
	OpenAIEndpoint string
	OpenAIModel    string

	// Market data settings
	CoinGeckoAPIKey string
	TrackedSymbols  []string
	BatchDelay      time.Duration
	CollectSchedule string

	// MongoDB settings
	MongoURI string
	MongoDB  string

	// Worker settings
	WorkerConcurrency int
	SubmitLimit       int
	SubmitWindow      time.Duration

	// Client polling settings
	PollInterval    time.Duration
	PollMaxAttempts int

	// API rate limiting
	APIRateLimit  int
	APIRateWindow time.Duration

	// Server settings
	HTTPAddr string
	Debug    bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Try to load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg := &Config{
		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIEndpoint: getEnv("OPENAI_ENDPOINT", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		// Market data
		CoinGeckoAPIKey: getEnv("COINGECKO_API_KEY", ""),
		TrackedSymbols:  getEnvList("TRACKED_SYMBOLS", []string{"bitcoin", "ethereum", "solana", "ripple", "cardano"}),
		BatchDelay:      getEnvDuration("BATCH_DELAY", 6*time.Second),
		CollectSchedule: getEnv("COLLECT_SCHEDULE", "@every 5m"),

		// MongoDB
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "coinscribe"),

		// Worker
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		SubmitLimit:       getEnvInt("SUBMIT_LIMIT", 5),
		SubmitWindow:      getEnvDuration("SUBMIT_WINDOW", time.Minute),

		// Client polling
		PollInterval:    getEnvDuration("POLL_INTERVAL", 10*time.Second),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 30),

		// API rate limiting
		APIRateLimit:  getEnvInt("API_RATE_LIMIT", 60),
		APIRateWindow: getEnvDuration("API_RATE_WINDOW", time.Minute),

		// Server
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Debug:    getEnvBool("DEBUG", false),
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, generation will use the offline fallback")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		if len(list) > 0 {
			return list
		}
	}
	return defaultValue
}
