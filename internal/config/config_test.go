package config_test

import (
	"testing"
	"time"

	"jobradar/ingest-service/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/ingest")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

// ── Load — required variables ──────────────────────────────────────────────

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	if _, err := config.Load(); err == nil {
		t.Error("Load without DATABASE_URL expected error, got nil")
	}
}

func TestLoad_RequiresRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ingest")
	t.Setenv("REDIS_URL", "")
	if _, err := config.Load(); err == nil {
		t.Error("Load without REDIS_URL expected error, got nil")
	}
}

// ── Load — defaults ────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ScrapeIntervalHours != 6 || cfg.VerifyIntervalHours != 12 {
		t.Errorf("intervals = %d/%d, want 6/12", cfg.ScrapeIntervalHours, cfg.VerifyIntervalHours)
	}
	if cfg.ScrapeLockTTL != 30*time.Minute {
		t.Errorf("ScrapeLockTTL = %v, want 30m", cfg.ScrapeLockTTL)
	}
	if len(cfg.SearchTerms) != 3 {
		t.Errorf("SearchTerms = %v, want the 3 default terms", cfg.SearchTerms)
	}
	if cfg.BrowserEnabled {
		t.Error("BrowserEnabled should default to false")
	}
	if !cfg.BrowserHeadless {
		t.Error("BrowserHeadless should default to true")
	}
}

// ── Load — overrides ───────────────────────────────────────────────────────

func TestLoad_ParsesSearchTerms(t *testing.T) {
	setRequired(t)
	t.Setenv("SEARCH_TERMS", "Go Developer, SRE , ,Platform Engineer")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"Go Developer", "SRE", "Platform Engineer"}
	if len(cfg.SearchTerms) != len(want) {
		t.Fatalf("SearchTerms = %v, want %v", cfg.SearchTerms, want)
	}
	for i := range want {
		if cfg.SearchTerms[i] != want[i] {
			t.Errorf("SearchTerms[%d] = %q, want %q", i, cfg.SearchTerms[i], want[i])
		}
	}
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	setRequired(t)
	for _, bad := range []string{"0", "-2", "six"} {
		t.Setenv("SCRAPE_INTERVAL_HOURS", bad)
		if _, err := config.Load(); err == nil {
			t.Errorf("SCRAPE_INTERVAL_HOURS=%s expected error, got nil", bad)
		}
	}
}
