package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://carwatch:x@localhost/carwatch")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Scraper.MaxPages != 20 {
		t.Fatalf("expected default max pages 20, got %d", cfg.Scraper.MaxPages)
	}
	if cfg.Scraper.Delay != 2*time.Second {
		t.Fatalf("expected default delay 2s, got %s", cfg.Scraper.Delay)
	}
	if cfg.Scraper.BatchSize != 50 {
		t.Fatalf("expected default batch size 50, got %d", cfg.Scraper.BatchSize)
	}
	if cfg.Scraper.FetchMaxAttempts != 3 {
		t.Fatalf("expected default fetch attempts 3, got %d", cfg.Scraper.FetchMaxAttempts)
	}
	if cfg.Checker.LinkedInterval != 6*time.Hour {
		t.Fatalf("expected linked interval 6h, got %s", cfg.Checker.LinkedInterval)
	}
	if cfg.Checker.UnlinkedInterval != 7*24*time.Hour {
		t.Fatalf("expected unlinked interval 168h, got %s", cfg.Checker.UnlinkedInterval)
	}
	if cfg.DBPath != "carwatch.db" {
		t.Fatalf("expected default journal path, got %s", cfg.DBPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://carwatch:x@localhost/carwatch")
	t.Setenv("MAX_PAGES", "5")
	t.Setenv("DELAY_BETWEEN_REQUESTS", "4")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("SCRAPE_INTERVAL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Scraper.MaxPages != 5 {
		t.Fatalf("expected max pages 5, got %d", cfg.Scraper.MaxPages)
	}
	if cfg.Scraper.Delay != 4*time.Second {
		t.Fatalf("expected delay 4s, got %s", cfg.Scraper.Delay)
	}
	if cfg.Scraper.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Scraper.BatchSize)
	}
	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Fatalf("expected interval 30m, got %s", cfg.Scheduler.Interval)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://carwatch:x@localhost/carwatch")
	t.Setenv("MAX_PAGES", "-3")
	t.Setenv("BATCH_SIZE", "not-a-number")
	t.Setenv("FETCH_MAX_ATTEMPTS", "0")
	t.Setenv("SCRAPE_INTERVAL", "soonish")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Scraper.MaxPages != 20 {
		t.Fatalf("negative max pages must fall back to 20, got %d", cfg.Scraper.MaxPages)
	}
	if cfg.Scraper.BatchSize != 50 {
		t.Fatalf("garbage batch size must fall back to 50, got %d", cfg.Scraper.BatchSize)
	}
	if cfg.Scraper.FetchMaxAttempts != 3 {
		t.Fatalf("zero attempts must fall back to 3, got %d", cfg.Scraper.FetchMaxAttempts)
	}
	if cfg.Scheduler.Interval != 0 {
		t.Fatalf("unparsable interval must stay unset, got %s", cfg.Scheduler.Interval)
	}
}
