// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package main is the entry point for the Pantrio server.
//
// Pantrio turns photos of groceries into an up-to-date pantry inventory
// and ranks a recipe corpus against it. The server initializes
// components in the following order:
//
//  1. Configuration: layered sources via Koanf v2 (env over file over
//     defaults)
//  2. Storage: BadgerDB for jobs, pantry items, recipes, and image blobs
//  3. Event bus: in-process channel transport by default, NATS
//     JetStream (external or embedded) when configured
//  4. Pipeline: recognition worker, confidence resolver, pantry
//     reconciler, match cache
//  5. Notification hub: per-user WebSocket delivery of job outcomes
//  6. HTTP server: REST API plus /metrics
//
// Everything long-running sits under a suture supervisor tree, so a
// crashing pipeline component restarts with backoff while the API keeps
// serving.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the event router stops consuming, and the stores
// close last.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/pantrio/internal/api"
	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/eventbus"
	"github.com/tomtom215/pantrio/internal/inference"
	"github.com/tomtom215/pantrio/internal/ingest"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/matchcache"
	"github.com/tomtom215/pantrio/internal/matcher"
	"github.com/tomtom215/pantrio/internal/notify"
	"github.com/tomtom215/pantrio/internal/pantry"
	"github.com/tomtom215/pantrio/internal/recognition"
	"github.com/tomtom215/pantrio/internal/resolver"
	"github.com/tomtom215/pantrio/internal/store"
	"github.com/tomtom215/pantrio/internal/supervisor"
	"github.com/tomtom215/pantrio/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("storage_path", cfg.Storage.Path).
		Bool("storage_in_memory", cfg.Storage.InMemory).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Str("inference_url", cfg.Inference.URL).
		Msg("Configuration loaded")

	db, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	jobs := store.NewJobStore(db)
	blobs := store.NewBadgerBlobStore(db)
	pantryStore := store.NewPantryStore(db)
	recipes := store.NewRecipeStore(db)

	bus, err := eventbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	if cfg.Matcher.CorpusPath != "" {
		if err := importCorpus(recipes, cfg.Matcher.CorpusPath); err != nil {
			return fmt.Errorf("import recipe corpus: %w", err)
		}
	}

	// Pipeline components.
	engine := matcher.NewEngine(recipes, pantryStore, cfg.Matcher)
	matches := matchcache.New(engine, pantryStore, cfg.Cache, cfg.Pantry.QuantityBucket)
	reconciler := pantry.NewReconciler(pantryStore, jobs, pantry.DefaultShelfLife(), matches, cfg.Pantry)
	res := resolver.New(resolver.DefaultLexicon(), cfg.Resolver)
	backend := inference.NewHTTPBackend(cfg.Inference.URL, cfg.Inference.Timeout)
	recognizer := inference.NewClient(backend, cfg.Inference)
	worker := recognition.NewWorker(jobs, blobs, recognizer, res, reconciler, bus, cfg.Inference)
	reaper := recognition.NewReaper(jobs, bus, bus, cfg.Inference)
	hub := notify.NewHub()
	ingestor := ingest.New(blobs, jobs, bus, cfg.Ingest)

	// Event router: dispatch messages to the worker, completions to the
	// notification hub.
	router, err := eventbus.NewRouter(eventbus.DefaultRouterConfig(), bus)
	if err != nil {
		return fmt.Errorf("create event router: %w", err)
	}
	router.AddNoPublisherHandler(
		"recognition-worker",
		eventbus.TopicJobQueued,
		bus.Subscriber(),
		worker.HandleJobQueued,
	)
	router.AddNoPublisherHandler(
		"notify-subscriber",
		eventbus.TopicRecognitionCompleted,
		bus.Subscriber(),
		hub.HandleCompleted,
	)

	handler := api.NewHandler(ingestor, jobs, pantryStore, recipes, reconciler, matches, hub, *cfg)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.API),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// Supervisor tree. sutureslog speaks slog, bridged to zerolog.
	slogLogger := slog.New(logging.NewSlogHandler())
	tree := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())

	gc := store.NewGC(db, cfg.Storage.GCInterval, cfg.Storage.GCDiscardRatio)
	tree.AddDataService(services.NewStartStopService("store-gc", gc))

	tree.AddPipelineService(services.NewRunnerService("event-router", router))
	tree.AddPipelineService(services.NewRunnerService("recognition-reaper", services.RunnerFunc(reaper.Serve)))
	tree.AddPipelineService(services.NewRunnerService("notify-hub", services.RunnerFunc(hub.Run)))
	tree.AddPipelineService(services.NewVoidStartService("match-cache-sweeper", matches))

	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := tree.ServeBackground(ctx)

	logging.Info().
		Str("addr", httpServer.Addr).
		Msg("Pantrio server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor shutdown: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor tree failed: %w", err)
		}
	}

	logging.Info().Msg("Pantrio server stopped")
	return nil
}

// importCorpus loads the recipe corpus file at startup. Re-imports are
// harmless: recipes are keyed by ID, so existing ones are overwritten.
func importCorpus(recipes *store.RecipeStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only file

	count, err := recipes.Import(context.Background(), f)
	if err != nil {
		return err
	}
	logging.Info().Int("recipes", count).Str("path", path).Msg("Recipe corpus imported")
	return nil
}
