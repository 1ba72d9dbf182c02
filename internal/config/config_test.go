package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("api port = %d", cfg.API.Port)
	}
	if cfg.AI.Provider != "groq" {
		t.Errorf("ai provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.Temperature != 0.1 {
		t.Errorf("ai temperature = %v", cfg.AI.Temperature)
	}
	if cfg.Limits.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("max upload bytes = %d", cfg.Limits.MaxUploadBytes)
	}
	if cfg.Limits.ParseRateLimit != 10 || cfg.Limits.ParseRateWindow != 10*time.Minute {
		t.Errorf("parse limits = %d per %v", cfg.Limits.ParseRateLimit, cfg.Limits.ParseRateWindow)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("PARSE_RATE_LIMIT", "3")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Provider != "openrouter" || cfg.AI.OpenRouterKey != "sk-test" {
		t.Errorf("ai config = %+v", cfg.AI)
	}
	if cfg.Limits.ParseRateLimit != 3 {
		t.Errorf("parse rate limit = %d", cfg.Limits.ParseRateLimit)
	}
	if cfg.Redis.Addr() != "localhost:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr())
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "palm")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown provider to be rejected")
	}
}
