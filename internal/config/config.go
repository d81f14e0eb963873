// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package config provides koanf-based configuration for RankLab.
//
// Configuration is resolved in three layers, later layers overriding earlier
// ones: struct defaults, a YAML config file, environment variables with the
// RANKLAB_ prefix (RANKLAB_SERVER_PORT=8080 → server.port).
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Vectors  VectorsConfig  `koanf:"vectors"`
	NATS     NATSConfig     `koanf:"nats"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Learning LearningConfig `koanf:"learning"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimitPerMinute bounds requests per client IP on data endpoints.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the DuckDB relational store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads limits DuckDB worker threads. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// VectorsConfig configures the embedding space and vector persistence.
type VectorsConfig struct {
	// Dir is the Badger directory for vector persistence. Empty = in-memory.
	Dir string `koanf:"dir"`
	// Dimension is the shared user/item embedding dimension.
	Dimension int `koanf:"dimension"`
	// EncoderSeed seeds the feature-hashing encoder for reproducibility.
	EncoderSeed int64 `koanf:"encoder_seed"`
	// Breaker settings for the encoder circuit breaker.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// NATSConfig configures the engagement event bus.
// When Enabled is false the bus runs on in-process Go channels, which is the
// right mode for development and tests.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
	DurableName    string `koanf:"durable_name"`
	QueueGroup     string `koanf:"queue_group"`
}

// RankingConfig configures the candidate pipeline.
type RankingConfig struct {
	// InNetworkLimit bounds candidates from followed accounts.
	InNetworkLimit int `koanf:"in_network_limit"`
	// RetrievalLimit bounds candidates from two-tower retrieval.
	RetrievalLimit int `koanf:"retrieval_limit"`
	// ResultSize is the default number of ranked posts returned.
	ResultSize int `koanf:"result_size"`
	// MaxResultSize caps caller-supplied result-size overrides.
	MaxResultSize int `koanf:"max_result_size"`
	// MaxPostAge drops candidates older than this horizon.
	MaxPostAge time.Duration `koanf:"max_post_age"`
	// HistoryLimit caps engaged-item texts used for the user tower.
	HistoryLimit int `koanf:"history_limit"`
	// HydrationParallelism caps concurrent per-candidate hydration.
	HydrationParallelism int `koanf:"hydration_parallelism"`
	// SourceTimeout bounds each sourcing branch.
	SourceTimeout time.Duration `koanf:"source_timeout"`
	// DiversityDecay and DiversityFloor parameterize the author penalty.
	DiversityDecay float64 `koanf:"diversity_decay"`
	DiversityFloor float64 `koanf:"diversity_floor"`
	// NetworkFactor scales out-of-network candidate scores.
	NetworkFactor float64 `koanf:"network_factor"`
	// IsolationEpsilon is the tolerated per-candidate score drift across
	// batch compositions.
	IsolationEpsilon float64 `koanf:"isolation_epsilon"`
}

// LearningConfig configures the online learning updater.
type LearningConfig struct {
	// ItemRate is the real-time item vector learning rate.
	ItemRate float64 `koanf:"item_rate"`
	// UserBaseAlpha caps the user vector blend factor.
	UserBaseAlpha float64 `koanf:"user_base_alpha"`
	// BatchEvery triggers a projection refit after this many events.
	BatchEvery int `koanf:"batch_every"`
	// BatchInterval triggers a refit on a timer even below BatchEvery.
	BatchInterval time.Duration `koanf:"batch_interval"`
	// BatchMaxDuration bounds one refit so it cannot starve real-time updates.
	BatchMaxDuration time.Duration `koanf:"batch_max_duration"`
	// ColdStartThreshold is the engagement count below which a user vector is
	// not trusted for retrieval quality.
	ColdStartThreshold int `koanf:"cold_start_threshold"`
	// PairStripes sizes the striped mutex table for per-pair serialization.
	PairStripes int `koanf:"pair_stripes"`
}

// Validate checks cross-field constraints after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Vectors.Dimension <= 0 {
		return fmt.Errorf("vectors.dimension must be positive: %d", c.Vectors.Dimension)
	}
	if c.Ranking.ResultSize <= 0 {
		return fmt.Errorf("ranking.result_size must be positive: %d", c.Ranking.ResultSize)
	}
	if c.Ranking.MaxResultSize < c.Ranking.ResultSize {
		return fmt.Errorf("ranking.max_result_size %d below result_size %d",
			c.Ranking.MaxResultSize, c.Ranking.ResultSize)
	}
	if c.Ranking.DiversityDecay <= 0 || c.Ranking.DiversityDecay >= 1 {
		return fmt.Errorf("ranking.diversity_decay must be in (0,1): %f", c.Ranking.DiversityDecay)
	}
	if c.Ranking.DiversityFloor < 0 || c.Ranking.DiversityFloor >= 1 {
		return fmt.Errorf("ranking.diversity_floor must be in [0,1): %f", c.Ranking.DiversityFloor)
	}
	if c.Ranking.NetworkFactor <= 0 || c.Ranking.NetworkFactor > 1 {
		return fmt.Errorf("ranking.network_factor must be in (0,1]: %f", c.Ranking.NetworkFactor)
	}
	if c.Learning.ItemRate <= 0 || c.Learning.ItemRate >= 1 {
		return fmt.Errorf("learning.item_rate must be in (0,1): %f", c.Learning.ItemRate)
	}
	if c.Learning.UserBaseAlpha <= 0 || c.Learning.UserBaseAlpha > 1 {
		return fmt.Errorf("learning.user_base_alpha must be in (0,1]: %f", c.Learning.UserBaseAlpha)
	}
	if c.Learning.BatchEvery <= 0 {
		return fmt.Errorf("learning.batch_every must be positive: %d", c.Learning.BatchEvery)
	}
	if c.NATS.Enabled && c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("nats.url required when nats.enabled and no embedded server")
	}
	return nil
}
