package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_BACKEND", "MATCH_TTL", "TICK_INTERVAL", "SUBMIT_RATE_LIMIT"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.StoreBackend != "redis" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MatchTTL != time.Hour || cfg.TickInterval != 2*time.Second || cfg.SubmitRateLimit != 600 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TICK_INTERVAL", "500ms")
	t.Setenv("SUBMIT_RATE_LIMIT", "30")

	cfg := Load()
	if cfg.Port != "9000" || cfg.StoreBackend != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TickInterval != 500*time.Millisecond || cfg.SubmitRateLimit != 30 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "soon")
	t.Setenv("MATCH_TTL", "-1m")
	t.Setenv("SUBMIT_RATE_LIMIT", "lots")

	cfg := Load()
	if cfg.TickInterval != 2*time.Second || cfg.MatchTTL != time.Hour || cfg.SubmitRateLimit != 600 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
