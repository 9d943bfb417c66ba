package config

import (
	"errors"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "WS_PORT", "WS_HOST", "DATABASE_URL",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD",
		"JWT_SECRET", "API_KEY",
		"RATE_LIMIT_WINDOW_MS", "RATE_LIMIT_MAX_REQUESTS",
		"MAX_FILE_SIZE_BYTES", "MAX_REQUEST_SIZE_BYTES",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/recipes")
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3000" || cfg.WSPort != "8080" {
		t.Fatalf("want default ports 3000/8080, got %s/%s", cfg.Port, cfg.WSPort)
	}
	if cfg.RedisHost != "localhost" || cfg.RedisPort != "6379" {
		t.Fatalf("want redis defaults, got %s:%s", cfg.RedisHost, cfg.RedisPort)
	}
	if cfg.RateLimitWindowMS != 900000 || cfg.RateLimitMaxRequests != 100 {
		t.Fatalf("want rate limit defaults, got %d/%d", cfg.RateLimitWindowMS, cfg.RateLimitMaxRequests)
	}
	if cfg.MaxFileSizeBytes != 10485760 || cfg.MaxRequestSizeBytes != 10485760 {
		t.Fatalf("want 10 MiB size defaults, got %d/%d", cfg.MaxFileSizeBytes, cfg.MaxRequestSizeBytes)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))

	_, err := Load()
	if !errors.Is(err, ErrDatabaseURLRequired) {
		t.Fatalf("want ErrDatabaseURLRequired, got %v", err)
	}
}

func TestLoad_JWTSecretTooShort(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/recipes")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	if !errors.Is(err, ErrJWTSecretTooShort) {
		t.Fatalf("want ErrJWTSecretTooShort, got %v", err)
	}
}

func TestLoad_APIKeyTooShort(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/recipes")
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("API_KEY", "short")

	_, err := Load()
	if !errors.Is(err, ErrAPIKeyTooShort) {
		t.Fatalf("want ErrAPIKeyTooShort, got %v", err)
	}
}

func TestLoad_APIKeyOptionalWhenAbsent(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/recipes")
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))

	if _, err := Load(); err != nil {
		t.Fatalf("want no error with absent API key, got %v", err)
	}
}
