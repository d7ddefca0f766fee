// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration for the arbitrage distribution platform.
type Config struct {
	DataDir          string // Base directory for all databases (defaults to "./data")
	ObjectStoreDir   string // Local filesystem root standing in for the object store
	LogLevel         string
	Port             int
	DevMode          bool
	MaxConcurrentAI  int
	MaxConcurrentTxn int
	MaxConcurrentMig int
	DistributionBatch int
	RateLimitPerHour  int
	RateLimitPerDay   int
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration
	TransactionTimeout      time.Duration
	CleanupInterval         time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("./data"); err == nil {
			dataDir = "./data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:                 dataDir,
		ObjectStoreDir:          getEnv("OBJECT_STORE_DIR", dataDir+"/objects"),
		Port:                    getEnvAsInt("GO_PORT", 8080),
		DevMode:                 getEnvAsBool("DEV_MODE", false),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		MaxConcurrentAI:         getEnvAsInt("MAX_CONCURRENT_AI_REQUESTS", 50),
		MaxConcurrentTxn:        getEnvAsInt("MAX_CONCURRENT_TRANSACTIONS", 100),
		MaxConcurrentMig:        getEnvAsInt("MAX_CONCURRENT_MIGRATIONS", 10),
		DistributionBatch:       getEnvAsInt("DISTRIBUTION_BATCH_SIZE", 100),
		RateLimitPerHour:        getEnvAsInt("RATE_LIMIT_PER_HOUR", 10),
		RateLimitPerDay:         getEnvAsInt("RATE_LIMIT_PER_DAY", 50),
		CircuitBreakerThreshold: getEnvAsInt("CIRCUIT_BREAKER_THRESHOLD", 5),
		CircuitBreakerCooldown:  getEnvAsDuration("CIRCUIT_BREAKER_COOLDOWN", 30*time.Second),
		TransactionTimeout:      getEnvAsDuration("TRANSACTION_TIMEOUT", 30*time.Second),
		CleanupInterval:         getEnvAsDuration("CLEANUP_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.MaxConcurrentAI <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_AI_REQUESTS must be positive")
	}
	if c.MaxConcurrentTxn <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_TRANSACTIONS must be positive")
	}
	if c.DistributionBatch <= 0 {
		return fmt.Errorf("DISTRIBUTION_BATCH_SIZE must be positive")
	}
	if c.RateLimitPerHour <= 0 || c.RateLimitPerDay <= 0 {
		return fmt.Errorf("rate limit caps must be positive")
	}
	if c.RateLimitPerHour > c.RateLimitPerDay {
		return fmt.Errorf("RATE_LIMIT_PER_HOUR cannot exceed RATE_LIMIT_PER_DAY")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
