// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package store is the DuckDB-backed relational layer: users, posts, the
// social graph, the append-only engagement log, scoring weights with their
// audit trail, and the consistency-check log.
//
// The package implements ranking.DataProvider and the learning provider
// interfaces; neither of those packages imports this one.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// New opens (or creates) the database and initializes the schema.
// An empty path opens an in-memory database.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Auto-install/auto-load stays off so startup cannot hang on extension
	// downloads in restricted networks.
	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads, maxMemory,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(threads)
	conn.SetConnMaxLifetime(0)

	db := &DB{
		conn:   conn,
		logger: logging.Logger().With().Str("component", "store").Logger(),
	}
	if err := db.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return db, nil
}

// schema is applied on every startup; all DDL is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		text TEXT NOT NULL,
		parent_id TEXT,
		thread_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		like_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		repost_count INTEGER NOT NULL DEFAULT 0,
		view_count INTEGER NOT NULL DEFAULT 0,
		visibility TEXT NOT NULL DEFAULT 'visible'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author_created
		ON posts (author_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS follows (
		user_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, followee_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		user_id TEXT NOT NULL,
		blocked_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, blocked_id)
	)`,
	`CREATE TABLE IF NOT EXISTS mutes (
		user_id TEXT NOT NULL,
		muted_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, muted_id)
	)`,
	`CREATE TABLE IF NOT EXISTS engagement_events (
		event_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		action TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		dwell_ms BIGINT NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		served_score DOUBLE NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_user_ts
		ON engagement_events (user_id, ts)`,
	`CREATE TABLE IF NOT EXISTS scoring_weights (
		action TEXT PRIMARY KEY,
		weight DOUBLE NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scoring_weight_audit (
		change_group TEXT NOT NULL,
		action TEXT NOT NULL,
		prior_weight DOUBLE NOT NULL,
		new_weight DOUBLE NOT NULL,
		changed_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS consistency_checks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		max_difference DOUBLE NOT NULL,
		variance DOUBLE NOT NULL,
		epsilon DOUBLE NOT NULL,
		consistent BOOLEAN NOT NULL,
		checked_at TIMESTAMP NOT NULL
	)`,
}

// initialize applies the schema.
func (db *DB) initialize() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	db.logger.Debug().Msg("schema initialized")
	return nil
}

// Health verifies the connection is alive.
func (db *DB) Health(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// now returns the canonical storage timestamp.
func now() time.Time {
	return time.Now().UTC()
}
