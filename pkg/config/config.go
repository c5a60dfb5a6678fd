// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fingerprint strategies for stored questions.
const (
	StrategyLocal    = "local"
	StrategyAssisted = "assisted"
)

// DefaultMaxUploadBytes limits request bodies when MAX_UPLOAD_BYTES is unset.
const DefaultMaxUploadBytes = 32 << 20

// Config holds all application configuration.
type Config struct {
	Port     string
	LogLevel string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Knowledge store backend, see backend.Config.
	StoreType     string
	StoreDSN      string
	StoreUsername string
	StorePassword string
	StoreDBName   string

	// Redis URL for a shared fingerprint cache. Empty keeps an in-process cache.
	FingerprintCacheURL  string
	FingerprintCacheTTL  time.Duration
	FingerprintDimension int
	IngestStrategy       string

	LLMTimeout    time.Duration
	LLMMaxRetries int
	// Model calls per second; 0 disables limiting.
	LLMRateLimit float64

	TopK           int
	MaxUploadBytes int64
}

// ModelConfigured reports whether a model API key is set.
func (c *Config) ModelConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or whole seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Load reads configuration from environment variables and returns a Config struct.
// It loads a .env file if one exists. No variable is required: without
// OPENAI_API_KEY the service runs without a model.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),

		StoreType:     getEnv("STORE_TYPE", "sqlite"),
		StoreDSN:      os.Getenv("STORE_DSN"),
		StoreUsername: os.Getenv("STORE_USERNAME"),
		StorePassword: os.Getenv("STORE_PASSWORD"),
		StoreDBName:   os.Getenv("STORE_DB_NAME"),

		FingerprintCacheURL:  os.Getenv("FINGERPRINT_CACHE_URL"),
		FingerprintCacheTTL:  getEnvAsDuration("FINGERPRINT_CACHE_TTL", 0),
		FingerprintDimension: getEnvAsInt("FINGERPRINT_DIMENSION", 256),
		IngestStrategy:       strings.ToLower(getEnv("INGEST_STRATEGY", StrategyLocal)),

		LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxRetries: getEnvAsInt("LLM_MAX_RETRIES", 1),
		LLMRateLimit:  getEnvAsFloat("LLM_RATE_LIMIT", 0),

		TopK:           getEnvAsInt("TOP_K", 5),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.IngestStrategy {
	case StrategyLocal, StrategyAssisted:
	default:
		return fmt.Errorf("INGEST_STRATEGY must be %q or %q, got %q", StrategyLocal, StrategyAssisted, c.IngestStrategy)
	}
	if c.FingerprintDimension <= 0 {
		return errors.New("FINGERPRINT_DIMENSION must be a positive integer")
	}
	if c.TopK <= 0 {
		return errors.New("TOP_K must be a positive integer")
	}
	if c.LLMMaxRetries < 0 {
		return errors.New("LLM_MAX_RETRIES must not be negative")
	}
	if c.LLMRateLimit < 0 {
		return errors.New("LLM_RATE_LIMIT must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be a positive integer")
	}
	return nil
}
