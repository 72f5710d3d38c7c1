package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Pool parameters live in a TOML file so deployments can version
	// them alongside infrastructure.
	PoolConfigPath string

	// Vault simulation
	VaultInitialSharePrice string
	VaultAPR               string

	// Quote cache
	QuoteCacheTTL time.Duration

	// Stream
	StreamBufferSize int

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Pool defaults
		PoolConfigPath: getEnvOrDefault("POOL_CONFIG_PATH", "pool.toml"),

		// Vault defaults
		VaultInitialSharePrice: getEnvOrDefault("VAULT_INITIAL_SHARE_PRICE", "1.0"),
		VaultAPR:               getEnvOrDefault("VAULT_APR", "0.05"),

		// Quote cache defaults
		QuoteCacheTTL: getDurationOrDefault("QUOTE_CACHE_TTL", 500*time.Millisecond),

		// Stream defaults
		StreamBufferSize: getIntOrDefault("STREAM_BUFFER_SIZE", 256),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "hyperdrive"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "hyperdrive123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "hyperdrive_amm"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.PoolConfigPath == "" {
		return fmt.Errorf("POOL_CONFIG_PATH cannot be empty")
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if c.StreamBufferSize <= 0 {
		return fmt.Errorf("STREAM_BUFFER_SIZE must be positive, got %d", c.StreamBufferSize)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
