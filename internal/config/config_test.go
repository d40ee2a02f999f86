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

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.TierWindow != 15*time.Minute {
		t.Errorf("TierWindow = %v, want 15m", cfg.TierWindow)
	}
	if cfg.TierMaxAnonymous != 100 || cfg.TierMaxRegular != 200 || cfg.TierMaxApproved != 500 {
		t.Errorf("tier quotas = %d/%d/%d, want 100/200/500",
			cfg.TierMaxAnonymous, cfg.TierMaxRegular, cfg.TierMaxApproved)
	}
	if cfg.SearchLimit.Max != 30 || cfg.SearchLimit.Window != time.Minute {
		t.Errorf("SearchLimit = %+v, want 30 per 1m", cfg.SearchLimit)
	}
	if cfg.CacheOpTimeout != 250*time.Millisecond {
		t.Errorf("CacheOpTimeout = %v, want 250ms", cfg.CacheOpTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_APPROVED", "900")
	t.Setenv("SEARCH_LIMIT_WINDOW", "30s")
	t.Setenv("CACHE_TTL_EVENTS", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TierMaxApproved != 900 {
		t.Errorf("TierMaxApproved = %d, want 900", cfg.TierMaxApproved)
	}
	if cfg.SearchLimit.Window != 30*time.Second {
		t.Errorf("SearchLimit.Window = %v, want 30s", cfg.SearchLimit.Window)
	}
	if cfg.CacheTTLEvents != time.Minute {
		t.Errorf("CacheTTLEvents = %v, want 1m", cfg.CacheTTLEvents)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_REGULAR", "lots")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TierMaxRegular != 200 {
		t.Errorf("malformed int should fall back, got %d", cfg.TierMaxRegular)
	}
	if cfg.TierWindow != 15*time.Minute {
		t.Errorf("malformed duration should fall back, got %v", cfg.TierWindow)
	}
}
