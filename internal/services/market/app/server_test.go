package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/timeouts"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath == "" || cfg.CachePath == "" || cfg.SearchPath == "" {
		t.Fatalf("expected default storage paths, got %+v", cfg)
	}
	if cfg.ReadHeaderTimeout != timeouts.ReadHeader {
		t.Fatalf("expected shared read header timeout, got %v", cfg.ReadHeaderTimeout)
	}
	if cfg.ShutdownTimeout != timeouts.Shutdown {
		t.Fatalf("expected shared shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
}

func TestServerStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	server, err := NewServer(Config{
		HTTPAddr:   "127.0.0.1:0",
		DBPath:     filepath.Join(dir, "market.db"),
		CachePath:  filepath.Join(dir, "cache.db"),
		SearchPath: filepath.Join(dir, "search.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.ListenAndServe(ctx)
	}()

	// Give the listener a moment to come up before requesting shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}
