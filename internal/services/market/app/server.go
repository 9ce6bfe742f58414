// Package app wires the market engine, its storage, and the HTTP surface
// into one runnable server process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/metrics"
	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/timeouts"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/audit"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/cache"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/engine"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/search"
	marketsqlite "github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage/sqlite"
)

// Config defines the inputs for the market server process.
type Config struct {
	HTTPAddr          string
	DBPath            string
	CachePath         string
	SearchPath        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = ":8080"
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = filepath.Join("data", "market.db")
	}
	if strings.TrimSpace(c.CachePath) == "" {
		c.CachePath = filepath.Join("data", "market-cache.db")
	}
	if strings.TrimSpace(c.SearchPath) == "" {
		c.SearchPath = filepath.Join("data", "market-search.db")
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = timeouts.Shutdown
	}
	return c
}

// Server hosts the market HTTP process and owns its storage lifecycle.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *marketsqlite.Store
	index           *search.SQLiteIndex
	cacheBackend    *cache.BoltBackend
	logger          *log.Logger
}

// NewServer opens the market stores and mounts the HTTP surface.
func NewServer(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()
	logger := log.New(os.Stderr, "[MARKET] ", log.LstdFlags)

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	index, err := search.OpenSQLite(cfg.SearchPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	backend, err := cache.OpenBolt(cfg.CachePath)
	if err != nil {
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	registry := prometheus.NewRegistry()
	hub := realtime.NewHub()
	eng, err := engine.New(engine.Config{
		Store:    store,
		Recorder: audit.NewRecorder(store),
		Counts:   cache.NewCounts(backend, logger),
		Search:   search.NewSynchronizer(index),
		Hub:      hub,
		Metrics:  metrics.NewEngineMetrics(registry),
		Logger:   logger,
	})
	if err != nil {
		_ = backend.Close()
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	handler, err := NewHandler(HandlerConfig{
		Engine:   eng,
		Hub:      hub,
		Messages: store,
		Metrics:  metrics.HandlerFor(registry),
		Logger:   logger,
	})
	if err != nil {
		_ = backend.Close()
		_ = index.Close()
		_ = store.Close()
		return nil, err
	}

	return &Server{
		httpAddr:        cfg.HTTPAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		store:        store,
		index:        index,
		cacheBackend: backend,
		logger:       logger,
	}, nil
}

// Run creates and serves a market server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("init market server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve market: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("market server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	s.logger.Printf("market server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.cacheBackend != nil {
		if err := s.cacheBackend.Close(); err != nil {
			s.logger.Printf("close cache: %v", err)
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Printf("close search index: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Printf("close store: %v", err)
		}
	}
}

func openStore(path string) (*marketsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := marketsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market sqlite store: %w", err)
	}
	return store, nil
}
