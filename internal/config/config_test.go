package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "STORE_BACKEND", "REDIS_URL", "LEDGER_SIMULATOR", "POLL_INTERVAL_MS", "ALLOWED_ORIGINS", "TRUST_PROXY"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.StoreBackend != BackendMemory || cfg.PollInterval != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.LedgerSimulator {
		t.Fatalf("ledger simulator should default on outside supabase")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.TrustProxy {
		t.Fatalf("forwarding headers must not be trusted by default")
	}

	t.Setenv("TRUST_PROXY", "true")
	if cfg, err = Load(); err != nil || !cfg.TrustProxy {
		t.Fatalf("TRUST_PROXY not applied: %+v %v", cfg, err)
	}
}

func TestLoadSupabase(t *testing.T) {
	t.Setenv("STORE_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "https://demo.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("LEDGER_SIMULATOR", "")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example , ,https://admin.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SupabaseURL != "https://demo.supabase.co" || cfg.LedgerSimulator {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example" {
		t.Fatalf("origins not trimmed: %v", cfg.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	base := Config{StoreBackend: BackendMemory, PollInterval: time.Second, LedgerInterval: time.Second, SessionTTL: time.Hour, JWTSecret: devJWTSecret}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"memory in development", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.StoreBackend = "mongo" }, true},
		{"postgres without url", func(c *Config) { c.StoreBackend = BackendPostgres }, true},
		{"supabase without key", func(c *Config) { c.StoreBackend = BackendSupabase; c.SupabaseURL = "https://x" }, true},
		{"production memory", func(c *Config) { c.Environment = "production"; c.JWTSecret = "s" }, true},
		{"production default secret", func(c *Config) {
			c.Environment = "production"
			c.StoreBackend = BackendPostgres
			c.DatabaseURL = "postgres://x"
		}, true},
		{"production ok", func(c *Config) {
			c.Environment = "production"
			c.StoreBackend = BackendPostgres
			c.DatabaseURL = "postgres://x"
			c.JWTSecret = "real"
		}, false},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			if err := c.Validate(); (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
