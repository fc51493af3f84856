package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SYNC_LOCK_TTL", "")
	t.Setenv("SESSION_COOKIE_SECURE", "")

	cfg := Load()
	if cfg.Port != "8080" || cfg.SyncLockTTL != 15*time.Minute || !cfg.SessionCookieSecure {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SyncWorkerCount != 3 || cfg.SyncQueueSize != 100 || cfg.OAuthStateExpiry != 10*time.Minute {
		t.Fatalf("unexpected sync defaults: %+v", cfg)
	}
}

func TestLoadOverridesAndIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_LOCK_TTL", "2m")
	t.Setenv("SYNC_WORKER_COUNT", "lots")
	t.Setenv("SESSION_COOKIE_SECURE", "false")
	t.Setenv("NOTION_CALL_TIMEOUT", "soon")

	cfg := Load()
	if cfg.Port != "9090" || cfg.SyncLockTTL != 2*time.Minute || cfg.SessionCookieSecure {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SyncWorkerCount != 3 || cfg.NotionCallTimeout != 20*time.Second {
		t.Fatalf("malformed values must fall back to defaults: %+v", cfg)
	}
}
