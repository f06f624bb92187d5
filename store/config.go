package store

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

// PostgresConfigFromEnv loads PostgreSQL configuration from environment variables
func PostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("POSTGRES_PORT", 5432),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		DBName:   getEnv("POSTGRES_DB", "geetanjali"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// MongoConfigFromEnv loads MongoDB configuration from environment variables
func MongoConfigFromEnv() *MongoConfig {
	return &MongoConfig{
		URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database: getEnv("MONGODB_DB", "geetanjali"),
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables
func RedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", "geetanjali:brief:"),
		TTL:      getEnvDuration("REDIS_TTL", 24*time.Hour),
	}
}

// NewRunStoreFromEnv builds the run store selected by GEETANJALI_RUN_STORE:
// "memory" (default), "postgres", or "mongodb".
func NewRunStoreFromEnv() (consult.RunStore, error) {
	backend := getEnv("GEETANJALI_RUN_STORE", "memory")
	switch backend {
	case "memory":
		return NewInMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(PostgresConfigFromEnv())
	case "mongodb":
		return NewMongoStore(MongoConfigFromEnv())
	default:
		return nil, fmt.Errorf("unknown run store backend: %s", backend)
	}
}

// NewBriefCacheFromEnv builds the brief cache selected by
// GEETANJALI_BRIEF_CACHE: "none" (default) or "redis".
func NewBriefCacheFromEnv() (consult.BriefCache, error) {
	backend := getEnv("GEETANJALI_BRIEF_CACHE", "none")
	switch backend {
	case "none":
		return NopBriefCache{}, nil
	case "redis":
		return NewRedisBriefCache(RedisConfigFromEnv()), nil
	default:
		return nil, fmt.Errorf("unknown brief cache backend: %s", backend)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
