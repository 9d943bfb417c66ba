// Package config reads the environment-variable surface of spec §6 into a
// typed Config, the same envOr/envIntOr helper-family shape as the
// teacher's cmd/api.loadConfig, plus the validation that produces the
// bit-exact messages §6 enumerates.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config is every environment variable spec §6 names, with its documented
// default.
type Config struct {
	Port   string
	WSPort string
	WSHost string

	DatabaseURL string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string
	APIKey    string

	RateLimitWindowMS    int
	RateLimitMaxRequests int
	MaxFileSizeBytes     int64
	MaxRequestSizeBytes  int64
}

// Sentinel errors, wrapped with field context the way engine/job and
// engine/parsedfile wrap theirs.
var (
	ErrDatabaseURLRequired = errors.New("Invalid database URL")
	ErrJWTSecretTooShort   = errors.New("JWT secret must be at least 32 characters")
	ErrAPIKeyTooShort      = errors.New("API key must be at least 16 characters")
)

const (
	minJWTSecretLen = 32
	minAPIKeyLen    = 16
)

// ValidationError wraps a sentinel with the offending field, matching the
// rest of the codebase's validation error shape.
type ValidationError struct {
	Field   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Wrapped, e.Field)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Port:   envOr("PORT", "3000"),
		WSPort: envOr("WS_PORT", "8080"),
		WSHost: os.Getenv("WS_HOST"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisHost:     envOr("REDIS_HOST", "localhost"),
		RedisPort:     envOr("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		APIKey:    os.Getenv("API_KEY"),

		RateLimitWindowMS:    envIntOr("RATE_LIMIT_WINDOW_MS", 900000),
		RateLimitMaxRequests: envIntOr("RATE_LIMIT_MAX_REQUESTS", 100),
		MaxFileSizeBytes:     envInt64Or("MAX_FILE_SIZE_BYTES", 10485760),
		MaxRequestSizeBytes:  envInt64Or("MAX_REQUEST_SIZE_BYTES", 10485760),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required/constrained fields spec §6 names.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return &ValidationError{Field: "database_url", Wrapped: ErrDatabaseURLRequired}
	}
	if u, err := url.Parse(c.DatabaseURL); err != nil || u.Scheme == "" {
		return &ValidationError{Field: "database_url", Wrapped: ErrDatabaseURLRequired}
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return &ValidationError{Field: "jwt_secret", Wrapped: ErrJWTSecretTooShort}
	}
	if c.APIKey != "" && len(c.APIKey) < minAPIKeyLen {
		return &ValidationError{Field: "api_key", Wrapped: ErrAPIKeyTooShort}
	}
	return nil
}

// RateLimitWindow returns RateLimitWindowMS as a time.Duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64Or(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
