// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Record store backends
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const devJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Record store
	StoreBackend string
	DatabaseURL  string
	SupabaseURL  string
	SupabaseKey  string

	// Security
	JWTSecret      string
	SessionTTL     time.Duration
	AllowedOrigins []string
	RateLimitRPM   int
	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind
	// a proxy that overwrites them.
	TrustProxy bool

	// Redis (rate limiting, token revocation, wizard state). Empty disables it.
	RedisURL string

	// Verification polling
	PollInterval time.Duration

	// Ledger simulator
	LedgerSimulator bool
	LedgerInterval  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SupabaseURL:  strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:  getEnv("SUPABASE_ANON_KEY", ""),

		JWTSecret:      getEnv("JWT_SECRET", devJWTSecret),
		SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),

		RedisURL: getEnv("REDIS_URL", ""),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_MS", 5000)) * time.Millisecond,

		LedgerInterval: time.Duration(getEnvInt("LEDGER_INTERVAL_SECONDS", 10)) * time.Second,
	}
	cfg.LedgerSimulator = getEnvBool("LEDGER_SIMULATOR", cfg.StoreBackend != BackendSupabase)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend settings, and secrets in production.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for the supabase backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want supabase, postgres or memory)", c.StoreBackend)
	}
	if c.PollInterval <= 0 || c.LedgerInterval <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("intervals and SESSION_TTL_MINUTES must be positive")
	}

	// Validate required fields in production
	if c.IsProduction() {
		if c.StoreBackend == BackendMemory {
			return fmt.Errorf("the memory backend cannot be used in production")
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
