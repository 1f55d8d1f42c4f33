package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vocdoni/dreip-node/api"
	"github.com/vocdoni/dreip-node/log"
	"github.com/vocdoni/dreip-node/storage"
)

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output)
	log.Infow("starting dreip-node")

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the document store
	log.Infow("initializing storage", "database", cfg.Mongo.Database)
	store, err := storage.New(ctx, storage.Options{
		URL:       cfg.Mongo.URL,
		Database:  cfg.Mongo.Database,
		BallotTTL: cfg.Mongo.BallotTTL,
	})
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warnw("failed to close storage", "error", err)
		}
	}()

	// Start the API server
	if _, err := api.New(ctx, &api.APIConfig{
		Host:       cfg.API.Host,
		Port:       cfg.API.Port,
		Store:      store,
		HMACSecret: []byte(cfg.HMACSecret),
	}); err != nil {
		log.Fatalf("failed to start API: %v", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}
