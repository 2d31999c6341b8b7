package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Unexpected default base URL: %q", cfg.OpenAI.BaseURL)
	}
	if cfg.HistoryLimit != 20 {
		t.Errorf("Expected default history limit 20, got %d", cfg.HistoryLimit)
	}
	if cfg.RateLimit.WindowDuration != time.Minute {
		t.Errorf("Expected default window 1m, got %v", cfg.RateLimit.WindowDuration)
	}
	if cfg.MaxRequestBodySize != 1<<20 {
		t.Errorf("Expected default body cap 1MB, got %d", cfg.MaxRequestBodySize)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("HISTORY_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Port != "9090" || cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("Expected env overrides applied, got %+v", cfg)
	}
	if cfg.RateLimit.RequestsPerWindow != 3 || cfg.RateLimit.WindowDuration != 30*time.Second {
		t.Errorf("Unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if cfg.HistoryLimit != 5 {
		t.Errorf("Expected history limit 5, got %d", cfg.HistoryLimit)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Errorf("Expected error without API key")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:   "8080",
			DBPath: "./data/test.db",
			OpenAI: OpenAIConfig{BaseURL: "http://x", APIKey: "k", Model: "m"},
			RateLimit: RateLimitConfig{
				RequestsPerWindow: 10,
				WindowDuration:    time.Minute,
			},
			MaxRequestBodySize: 1024,
			HistoryLimit:       20,
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty model", func(c *Config) { c.OpenAI.Model = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }},
		{"zero body cap", func(c *Config) { c.MaxRequestBodySize = 0 }},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := getEnvInt("TEST_INT", 7); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "not a number")
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("Expected fallback 7, got %d", got)
	}
}
