// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package main is the entry point for the RankLab server.
//
// RankLab is a per-user feed-ranking service: a multi-stage candidate
// pipeline (in-network sourcing plus two-tower retrieval, hydration,
// filtering, per-action scoring, diversity and network adjustment) combined
// with a two-tier online learning loop that adapts user and item embeddings
// from engagement events.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered resolution (defaults, YAML, RANKLAB_* env)
//  2. Logging: zerolog, JSON by default
//  3. Relational store: DuckDB (users, posts, graph edges, events, weights)
//  4. Vector stores: Badger-backed user and item embeddings (in-memory when
//     vectors.dir is empty)
//  5. Encoder chain: feature hashing -> circuit breaker -> learned projection
//  6. Ranking pipeline
//  7. Event bus: in-process Go channels by default, NATS JetStream when
//     nats.enabled (optionally embedded in this process)
//  8. Supervision tree: learning layer (engagement consumer, batch ticker)
//     and API layer (HTTP server), restarted independently with backoff
//
// # Shutdown
//
// SIGINT and SIGTERM cancel the tree context. The HTTP server drains
// in-flight requests within server.shutdown_timeout, the event router stops,
// then the bus, vector stores, and database close in that order.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/ranklab/internal/api"
	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/learning"
	"github.com/tomtom215/ranklab/internal/logging"
	"github.com/tomtom215/ranklab/internal/ranking"
	"github.com/tomtom215/ranklab/internal/store"
	"github.com/tomtom215/ranklab/internal/supervisor"
	"github.com/tomtom215/ranklab/internal/vector"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("vectors_dir", cfg.Vectors.Dir).
		Int("dimension", cfg.Vectors.Dimension).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("starting ranklab")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	// Empty dir keeps vectors in memory only, the right mode for tests and
	// local development.
	var bdb *badger.DB
	if cfg.Vectors.Dir != "" {
		opts := badger.DefaultOptions(cfg.Vectors.Dir).WithLogger(nil)
		bdb, err = badger.Open(opts)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to open vector store")
		}
		defer func() {
			if err := bdb.Close(); err != nil {
				logging.Error().Err(err).Msg("error closing vector store")
			}
		}()
	}

	// Encoder chain: deterministic feature hashing at the base, a circuit
	// breaker so an encoder fault degrades ranking instead of blocking it,
	// and the batch-learned projection swapped in on top.
	base := vector.NewHashingEncoder(cfg.Vectors.Dimension, cfg.Vectors.EncoderSeed)
	breakered := vector.NewBreakerEncoder(base, vector.BreakerConfig{
		MaxFailures: cfg.Vectors.BreakerMaxFailures,
		OpenTimeout: cfg.Vectors.BreakerOpenTimeout,
	}, logging.Logger())
	encoder := vector.NewProjectedEncoder(breakered)

	items, err := vector.NewItemStore(bdb)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load item vectors")
	}
	users, err := vector.NewUserStore(bdb, cfg.Vectors.Dimension)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load user vectors")
	}
	logging.Info().Msg("vector stores ready")

	pipeline := ranking.NewPipeline(db, users, items, encoder, cfg.Ranking)

	bus, err := learning.NewBus(cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing event bus")
		}
	}()

	pairs := learning.NewPairBuffer(0)
	updater := learning.NewRealtimeUpdater(users, items, encoder, db, pairs, cfg.Learning)
	rebuilder := learning.NewRebuilder(encoder, items, db, pairs, cfg.Learning)

	consumer, err := learning.NewConsumer(bus, updater, rebuilder)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create engagement consumer")
	}
	publisher := learning.NewPublisher(bus)

	handlers := api.NewHandlers(pipeline, publisher, db, items, users, encoder)
	router := api.NewRouter(handlers, &cfg.Server)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddLearningService(&learning.ConsumerService{Consumer: consumer})
	tree.AddLearningService(&learning.BatchTicker{
		Rebuilder: rebuilder,
		Interval:  cfg.Learning.BatchInterval,
	})
	tree.AddAPIService(supervisor.NewHTTPService(cfg.Server, router))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("supervision tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervision tree exited")
	}

	logging.Info().Msg("shutdown complete")
}
