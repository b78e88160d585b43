// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package main is the entry point for the SimilarUsers server.
//
// SimilarUsers answers "which editors behave like this one?" for a single
// wiki. It serves ranked similarity results from an in-memory engine built
// over a bulk snapshot of the wiki's edit history, and keeps individual users
// fresh by folding their post-snapshot edits in from the MediaWiki Action API
// on demand.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Snapshot store: Open DuckDB and, when a resource directory is
//     configured and no dataset is active, ingest the exported TSV files
//  3. Similarity store: Seed the in-memory co-edit, temporal, metadata and
//     page-editor indexes from the active snapshot generation
//  4. Edit provider: MediaWiki Action API client behind a circuit breaker
//  5. HTTP server: query, health, refresh and metrics endpoints (Chi router)
//  6. Supervisor tree: the HTTP server runs under suture with restart backoff
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (SERVER_PORT, PROVIDER_LANG, DATABASE_RESOURCE_DIR, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes the DuckDB snapshot store
//
// # Example Usage
//
// Serve English Wikipedia from a snapshot directory:
//
//	export PROVIDER_LANG=en
//	export PROVIDER_USER_AGENT="similarusers/1.0 (ops@example.org)"
//	export DATABASE_PATH=/srv/similarusers/snapshot.duckdb
//	export DATABASE_RESOURCE_DIR=/srv/similarusers/resources
//	./similarusers
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wikimedia/similarusers/internal/api"
	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/provider"
	"github.com/wikimedia/similarusers/internal/similarity"
	"github.com/wikimedia/similarusers/internal/snapshot"
	"github.com/wikimedia/similarusers/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("lang", cfg.Provider.Lang).
		Str("db_path", cfg.Database.Path).
		Str("resource_dir", cfg.Database.ResourceDir).
		Msg("Starting SimilarUsers")

	cutoff, err := cfg.Similarity.GlobalCutoffTime()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid snapshot cutoff fallback")
	}

	// Open the DuckDB snapshot store. An empty database path runs in-memory,
	// which only makes sense together with a resource directory.
	snap, err := snapshot.Open(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	defer func() {
		if err := snap.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing snapshot store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First boot against a fresh database: ingest the exported TSV files
	// before seeding the in-memory engine.
	activeID, _, err := snap.ActiveDataset(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to query active dataset")
	}
	if activeID == 0 && cfg.Database.ResourceDir != "" {
		logging.Info().Str("dir", cfg.Database.ResourceDir).Msg("No active dataset, ingesting TSV snapshot")
		if _, err := snap.IngestTSV(ctx, cfg.Database.ResourceDir); err != nil {
			logging.Fatal().Err(err).Msg("Failed to ingest TSV snapshot")
		}
	}

	store := similarity.NewStore(cfg.Similarity.CoeditLimit, cutoff)
	if _, err := snap.Load(ctx, store); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load snapshot into similarity store")
	}

	// MediaWiki client behind a circuit breaker so a degraded API cannot
	// stall every stale-user query at once.
	editProvider := provider.NewBreakerClient(provider.NewMediaWikiClient(&cfg.Provider))

	refresher := similarity.NewRefresher(store, editProvider, cfg.Similarity.Namespaces, cfg.Similarity.MaxPagesPerRefresh)
	ranker := similarity.NewRanker(store, cfg.Similarity.WindowOffsets)
	service := similarity.NewService(store, refresher, ranker, editProvider, similarity.ServiceOptions{
		DefaultK:        cfg.Similarity.DefaultK,
		MaxK:            cfg.Similarity.MaxK,
		Lang:            cfg.Provider.Lang,
		FollowupBaseURL: cfg.API.FollowupBaseURL,
	})

	handler := api.NewHandler(service, snap, &cfg.Similarity, &cfg.Database)
	router := api.NewRouter(handler, &cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Server stopped gracefully")
}
