package config

import (
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.DBPath != filepath.Join("/data", "jira-bridge", "meta.sqlite") {
		t.Fatalf("unexpected default db path: %s", cfg.DBPath)
	}
	if cfg.BridgeResponseSec != 25 {
		t.Fatalf("expected default bridge response window 25s, got %d", cfg.BridgeResponseSec)
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("expected default smtp port 587, got %d", cfg.SMTPPort)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JIRA_BRIDGE_HTTP_ADDR", ":9999")
	t.Setenv("JIRA_BRIDGE_RESPONSE_SECONDS", "5")
	t.Setenv("JIRA_BRIDGE_CARDS_WATCH", "false")
	t.Setenv("JIRA_BRIDGE_CACHE_TTL_SECONDS", "not-a-number")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected :9999, got %s", cfg.HTTPAddr)
	}
	if cfg.BridgeResponseSec != 5 {
		t.Fatalf("expected 5, got %d", cfg.BridgeResponseSec)
	}
	if cfg.CardsWatch {
		t.Fatal("expected cards watch disabled")
	}
	if cfg.CacheTTLSec != 300 {
		t.Fatalf("expected fallback ttl 300 on bad value, got %d", cfg.CacheTTLSec)
	}
}
