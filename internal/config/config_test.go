package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LISTING_PAGE_SIZE", "")
	t.Setenv("LISTING_ANNOTATE_SYNC_ELIGIBILITY", "")
	t.Setenv("SIDE_EFFECT_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listing.PageSize != 40 {
		t.Errorf("PageSize = %d, want 40", cfg.Listing.PageSize)
	}
	if cfg.Listing.AnnotateSyncEligibility {
		t.Error("sync annotation must be off by default")
	}
	if got := cfg.Worker.SideEffectTimeout(); got != 10*time.Second {
		t.Errorf("SideEffectTimeout = %v", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTING_PAGE_SIZE", "20")
	t.Setenv("LISTING_ANNOTATE_SYNC_ELIGIBILITY", "true")
	t.Setenv("LISTING_WAITING_THRESHOLD_MINUTES", "5")
	t.Setenv("WORKER_WAITING_INTERVAL_SECONDS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listing.PageSize != 20 || !cfg.Listing.AnnotateSyncEligibility {
		t.Errorf("listing = %+v", cfg.Listing)
	}
	if got := cfg.Listing.WaitingThreshold(); got != 5*time.Minute {
		t.Errorf("WaitingThreshold = %v", got)
	}
	if got := cfg.Worker.WaitingInterval(); got != 0 {
		t.Errorf("WaitingInterval = %v, want fallback 0", got)
	}
}

func TestLoadRejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("LISTING_PAGE_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for LISTING_PAGE_SIZE=0")
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for REDIS_DB=x")
	}
}
