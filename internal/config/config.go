// Package config loads FormMatic settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server and client settings. Every field has a usable default
// for local development.
type Config struct {
	HTTPAddr   string
	OxiDBHost  string
	OxiDBPort  int
	PoolSize   int
	JWTSecret  string
	AdminEmail string
	AdminPass  string

	LogLevel string
	GelfAddr string

	CORSOrigins []string
	// Per-user request rate on the API.
	RatePerSec float64
	RateBurst  int

	// Document-generation API that fills a PDF template from form data.
	FillAPIURL     string
	FillAPIKey     string
	FillAPITimeout time.Duration
	FillRatePerSec float64

	// Print fan-out; 1 keeps fill calls strictly sequential.
	PrintConcurrency int

	// Draft persistence: "memory", "file" or "redis".
	DraftBackend string
	DraftDir     string
	RedisAddr    string
	RedisDB      int
	DraftTTL     time.Duration

	// Client side (CLI).
	APIURL   string
	APIToken string
	UserID   string
}

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	var errs []error
	cfg := &Config{
		HTTPAddr:   getEnv("FORMMATIC_ADDR", ":8080"),
		OxiDBHost:  getEnv("OXIDB_HOST", "127.0.0.1"),
		OxiDBPort:  getEnvInt("OXIDB_PORT", 4444, &errs),
		PoolSize:   getEnvInt("FORMMATIC_POOL_SIZE", 3, &errs),
		JWTSecret:  getEnv("FORMMATIC_JWT_SECRET", "formmatic-dev-secret-change-me"),
		AdminEmail: getEnv("FORMMATIC_ADMIN_EMAIL", "admin@formmatic.local"),
		AdminPass:  getEnv("FORMMATIC_ADMIN_PASS", "admin123"),

		LogLevel: getEnv("FORMMATIC_LOG_LEVEL", "info"),
		GelfAddr: getEnv("FORMMATIC_GELF_ADDR", ""),

		CORSOrigins: getEnvList("FORMMATIC_CORS_ORIGINS", []string{"*"}),
		RatePerSec:  getEnvFloat("FORMMATIC_RATE", 20, &errs),
		RateBurst:   getEnvInt("FORMMATIC_RATE_BURST", 40, &errs),

		FillAPIURL:     getEnv("FORMMATIC_FILL_API_URL", "http://127.0.0.1:9090/fill"),
		FillAPIKey:     getEnv("FORMMATIC_FILL_API_KEY", ""),
		FillAPITimeout: getEnvDuration("FORMMATIC_FILL_API_TIMEOUT", 60*time.Second, &errs),
		FillRatePerSec: getEnvFloat("FORMMATIC_FILL_RATE", 5, &errs),

		PrintConcurrency: getEnvInt("FORMMATIC_PRINT_CONCURRENCY", 1, &errs),

		DraftBackend: getEnv("FORMMATIC_DRAFT_BACKEND", "memory"),
		DraftDir:     getEnv("FORMMATIC_DRAFT_DIR", ".formmatic"),
		RedisAddr:    getEnv("FORMMATIC_REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:      getEnvInt("FORMMATIC_REDIS_DB", 0, &errs),
		DraftTTL:     getEnvDuration("FORMMATIC_DRAFT_TTL", 30*24*time.Hour, &errs),

		APIURL:   getEnv("FORMMATIC_API_URL", "http://127.0.0.1:8080"),
		APIToken: getEnv("FORMMATIC_TOKEN", ""),
		UserID:   getEnv("FORMMATIC_USER_ID", ""),
	}
	if cfg.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("FORMMATIC_POOL_SIZE must be positive, got %d", cfg.PoolSize))
	}
	if cfg.PrintConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FORMMATIC_PRINT_CONCURRENCY must be positive, got %d", cfg.PrintConcurrency))
	}
	if cfg.RatePerSec <= 0 {
		errs = append(errs, fmt.Errorf("FORMMATIC_RATE must be positive, got %v", cfg.RatePerSec))
	}
	switch cfg.DraftBackend {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("FORMMATIC_DRAFT_BACKEND %q is not one of memory, file, redis", cfg.DraftBackend))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
