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

	if cfg.Server.Port != "8080" {
		t.Errorf("got port %q, want 8080", cfg.Server.Port)
	}
	if cfg.Registry.Path != "domains.json" {
		t.Errorf("got registry path %q, want domains.json", cfg.Registry.Path)
	}
	if cfg.Fetcher.Timeout != 30*time.Second {
		t.Errorf("got fetch timeout %v, want 30s", cfg.Fetcher.Timeout)
	}
	if cfg.Analytics.TopN != 10 {
		t.Errorf("got topn %d, want 10", cfg.Analytics.TopN)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("rate limiting must default to enabled")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DOMAINS_FILE", "/etc/leadboard/domains.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("got port %q, want 9090", cfg.Server.Port)
	}
	if cfg.Registry.Path != "/etc/leadboard/domains.json" {
		t.Errorf("got registry path %q, want override", cfg.Registry.Path)
	}
}
