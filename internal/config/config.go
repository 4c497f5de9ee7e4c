// Package config provides configuration management for the parcel sorter.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Orchestration:
//   - QUEUE_CAPACITY: Bounded work queue capacity (default: 1000)
//   - CONTEXT_TTL: Idle parcel context lifetime before eviction (default: 30m)
//   - CONTEXT_SWEEP_SCHEDULE: Cron schedule for the eviction sweep (default: @every 1m)
//   - CART_VOLUME_THRESHOLD: Volume above which a parcel occupies two carts (default: 100000)
//
// Rule Engine:
//   - RULE_CACHE_TTL: Enabled-rule snapshot lifetime (default: 5m)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./parcel_sorter.db)
//   - POSTGRES_HOST / POSTGRES_PORT / POSTGRES_DB / POSTGRES_USER /
//     POSTGRES_PASSWORD / POSTGRES_SSL_MODE: PostgreSQL connection settings
//
// Events:
//   - EVENT_BACKEND: "inproc", "rabbitmq" or "kafka" (default: inproc)
//   - RABBITMQ_URL: RabbitMQ connection URL
//   - RABBITMQ_EXCHANGE: Exchange for outbound events (default: parcel-events)
//   - KAFKA_BROKERS: Kafka bootstrap servers
//   - KAFKA_TOPIC: Topic for outbound events (default: parcel-events)
//
// Third-Party Enrichment:
//   - ENRICHMENT_URL: Lookup endpoint; empty disables enrichment
//   - ENRICHMENT_TIMEOUT: Per-lookup deadline (default: 2s)
//   - REDIS_ADDRESS: Redis address for the enrichment response cache
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - ENRICHMENT_CACHE_TTL: Cached response lifetime (default: 10m)
//
// Security:
//   - JWT_SECRET: Secret for admin API bearer tokens (required, min 32 chars)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the parcel sorter application.
// Load it with Load() and check it with Validate() before use.
type Config struct {
	// Application settings
	Port     string // HTTP server port
	LogLevel string // Logging level (debug, info, warn, error)

	// Orchestration settings
	QueueCapacity        int           // Bounded work queue capacity
	ContextTTL           time.Duration // Idle context lifetime before eviction
	ContextSweepSchedule string        // Cron schedule for the eviction sweep
	CartVolumeThreshold  string        // Decimal volume threshold for double-cart parcels

	// Rule engine settings
	RuleCacheTTL time.Duration // Enabled-rule snapshot lifetime

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string // SQLite database file path
	PostgresHost     string // PostgreSQL host address
	PostgresPort     string // PostgreSQL port number
	PostgresDB       string // PostgreSQL database name
	PostgresUser     string // PostgreSQL username
	PostgresPassword string // PostgreSQL password
	PostgresSSLMode  string // PostgreSQL SSL mode

	// Event publishing
	EventBackend     string // "inproc", "rabbitmq" or "kafka"
	RabbitMQURL      string // RabbitMQ connection URL
	RabbitMQExchange string // Exchange for outbound events
	KafkaBrokers     string // Kafka bootstrap servers
	KafkaTopic       string // Topic for outbound events

	// Third-party enrichment
	EnrichmentURL      string        // Lookup endpoint, empty disables enrichment
	EnrichmentTimeout  time.Duration // Per-lookup deadline
	RedisAddress       string        // Redis address for the response cache
	RedisPassword      string        // Redis password
	RedisDB            string        // Redis database number
	EnrichmentCacheTTL time.Duration // Cached response lifetime

	// JWT authentication
	JWTSecret string // Secret key for admin API bearer tokens
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults for anything unset. Call Validate()
// on the result before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		QueueCapacity:        getIntEnv("QUEUE_CAPACITY", 1000),
		ContextTTL:           getDurationEnv("CONTEXT_TTL", 30*time.Minute),
		ContextSweepSchedule: getEnv("CONTEXT_SWEEP_SCHEDULE", "@every 1m"),
		CartVolumeThreshold:  getEnv("CART_VOLUME_THRESHOLD", "100000"),

		RuleCacheTTL: getDurationEnv("RULE_CACHE_TTL", 5*time.Minute),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./parcel_sorter.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "parcel_sorter"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		EventBackend:     getEnv("EVENT_BACKEND", "inproc"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "parcel-events"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "parcel-events"),

		EnrichmentURL:      getEnv("ENRICHMENT_URL", ""),
		EnrichmentTimeout:  getDurationEnv("ENRICHMENT_TIMEOUT", 2*time.Second),
		RedisAddress:       getEnv("REDIS_ADDRESS", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnv("REDIS_DB", "0"),
		EnrichmentCacheTTL: getDurationEnv("ENRICHMENT_CACHE_TTL", 10*time.Minute),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable or returns a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, value ranges and cross-field dependencies.
// The application should call this after Load() and before starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be a positive number")
	}

	if c.ContextTTL <= 0 {
		return fmt.Errorf("CONTEXT_TTL must be a positive duration")
	}

	if c.RuleCacheTTL <= 0 {
		return fmt.Errorf("RULE_CACHE_TTL must be a positive duration")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	switch c.EventBackend {
	case "inproc":
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENT_BACKEND is 'rabbitmq'")
		}
	case "kafka":
		if c.KafkaBrokers == "" {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BACKEND is 'kafka'")
		}
	default:
		return fmt.Errorf("EVENT_BACKEND must be 'inproc', 'rabbitmq' or 'kafka'")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.EnrichmentURL != "" && c.EnrichmentTimeout <= 0 {
		return fmt.Errorf("ENRICHMENT_TIMEOUT must be a positive duration")
	}

	return nil
}
