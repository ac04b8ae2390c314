// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// RedisAddr is the Redis host:port used for sessions and the live
	// request feed. Required.
	RedisAddr string

	// JWTSecret signs access tokens. Required.
	JWTSecret string

	// KafkaBrokers is the list of Kafka broker addresses for lifecycle
	// events. Empty disables event publishing.
	KafkaBrokers []string

	// KafkaTopic is the topic lifecycle events are published to.
	// Defaults to "errand-requests".
	KafkaTopic string

	// S3 settings for request photo uploads. Uploads are disabled when
	// S3Endpoint is empty.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// S3PublicURL is the public root photo URLs are built from.
	// Defaults to the endpoint itself.
	S3PublicURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// RadiusFilter turns on proximity filtering of the open request
	// list. Defaults to false.
	RadiusFilter bool
}

// KafkaEnabled reports whether lifecycle event publishing is configured.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// S3Enabled reports whether photo uploads are configured.
func (c Config) S3Enabled() bool { return c.S3Endpoint != "" }

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "errand-requests"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		S3Bucket:     getEnv("S3_BUCKET", "errandly-photos"),
		S3UseSSL:     getBool("S3_USE_SSL", false),
		RadiusFilter: getBool("RADIUS_FILTER", false),
	}
	cfg.S3PublicURL = getEnv("S3_PUBLIC_URL", cfg.S3Endpoint)

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getBool parses the environment variable named by key as a bool,
// falling back on unset or unparseable values.
func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
