// Package market parses market command flags and composes the server entrypoint.
package market

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/Sreddy08840/agri-connect-sub002/internal/platform/cmd"
	server "github.com/Sreddy08840/agri-connect-sub002/internal/services/market/app"
)

// Config holds market command configuration.
type Config struct {
	HTTPAddr   string `env:"AGRI_CONNECT_MARKET_HTTP_ADDR"   envDefault:":8080"`
	DBPath     string `env:"AGRI_CONNECT_MARKET_DB_PATH"     envDefault:"data/market.db"`
	CachePath  string `env:"AGRI_CONNECT_MARKET_CACHE_PATH"  envDefault:"data/market-cache.db"`
	SearchPath string `env:"AGRI_CONNECT_MARKET_SEARCH_PATH" envDefault:"data/market-search.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "market HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "market sqlite database path")
	fs.StringVar(&cfg.CachePath, "cache-path", cfg.CachePath, "count cache database path")
	fs.StringVar(&cfg.SearchPath, "search-path", cfg.SearchPath, "search index database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the market app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMarket, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:   cfg.HTTPAddr,
			DBPath:     cfg.DBPath,
			CachePath:  cfg.CachePath,
			SearchPath: cfg.SearchPath,
		}); err != nil {
			return fmt.Errorf("serve market: %w", err)
		}
		return nil
	})
}
