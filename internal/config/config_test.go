package config

import (
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/glamping",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("LoadForTests: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("unexpected app env %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.CurrencyCode != "IDR" {
		t.Fatalf("unexpected currency %q", cfg.CurrencyCode)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.AccessTokenTTL)
	}
	if cfg.RateLimitWrites != "60-M" {
		t.Fatalf("unexpected rate limit %q", cfg.RateLimitWrites)
	}
	if !cfg.RunMigrations {
		t.Fatal("migrations should run by default")
	}
}

func TestLoadRequiresCoreSettings(t *testing.T) {
	for _, missing := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET"} {
		env := baseEnv()
		env[missing] = ""
		if _, err := LoadForTests(env); err == nil {
			t.Errorf("expected error when %s is missing", missing)
		}
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["CORS_ALLOWED_ORIGINS"] = "https://admin.nusacamp.id, https://ops.nusacamp.id"
	env["ACCESS_TOKEN_TTL"] = "30m"
	env["WORKER_CONCURRENCY"] = "8"
	env["RUN_MIGRATIONS"] = "false"

	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("LoadForTests: %v", err)
	}
	if cfg.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://ops.nusacamp.id" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.AccessTokenTTL)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Fatalf("unexpected concurrency %d", cfg.WorkerConcurrency)
	}
	if cfg.RunMigrations {
		t.Fatal("migrations should be disabled")
	}
}
