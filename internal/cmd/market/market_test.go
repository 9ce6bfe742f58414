package market

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("market", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "data/market.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.CachePath != "data/market-cache.db" {
		t.Fatalf("expected default cache path, got %q", cfg.CachePath)
	}
	if cfg.SearchPath != "data/market-search.db" {
		t.Fatalf("expected default search path, got %q", cfg.SearchPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("AGRI_CONNECT_MARKET_HTTP_ADDR", "env-addr")
	t.Setenv("AGRI_CONNECT_MARKET_DB_PATH", "env-db")

	fs := flag.NewFlagSet("market", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-cache-path", "flag-cache",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "env-db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.CachePath != "flag-cache" {
		t.Fatalf("expected flag cache path, got %q", cfg.CachePath)
	}
}
