package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	NumWorkers       int
	DisableThreshold int
	// DeliveryRateLimit caps deliveries per webhook per second; 0 disables.
	DeliveryRateLimit int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		NumWorkers:        getEnvInt("NUM_WORKERS", 50),
		DisableThreshold:  getEnvInt("DISABLE_THRESHOLD", 5),
		DeliveryRateLimit: getEnvInt("DELIVERY_RATE_LIMIT", 0),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.DisableThreshold < 1 {
		return nil, fmt.Errorf("DISABLE_THRESHOLD must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
