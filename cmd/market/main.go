// Package main starts the marketplace workflow service and handles termination.
//
// The process hosts the listing and order lifecycle engine together with its
// JSON API, search index, count cache, and realtime fan-out surface.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	marketcmd "github.com/Sreddy08840/agri-connect-sub002/internal/cmd/market"
)

func main() {
	cfg, err := marketcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[MARKET] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := marketcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
