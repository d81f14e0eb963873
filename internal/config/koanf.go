// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ranklab/config.yaml",
	"/etc/ranklab/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces RankLab environment variables.
const envPrefix = "RANKLAB_"

// defaultConfig returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8457,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    20 * time.Second,
			RateLimitPerMinute: 600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/ranklab.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Vectors: VectorsConfig{
			Dir:                "/data/vectors",
			Dimension:          128,
			EncoderSeed:        42,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:        false, // in-process bus by default
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			DurableName:    "learning-updater",
			QueueGroup:     "learners",
		},
		Ranking: RankingConfig{
			InNetworkLimit:       300,
			RetrievalLimit:       300,
			ResultSize:           30,
			MaxResultSize:        100,
			MaxPostAge:           7 * 24 * time.Hour,
			HistoryLimit:         50,
			HydrationParallelism: 16,
			SourceTimeout:        100 * time.Millisecond,
			DiversityDecay:       0.7,
			DiversityFloor:       0.3,
			NetworkFactor:        0.8,
			IsolationEpsilon:     0.01,
		},
		Learning: LearningConfig{
			ItemRate:           0.01,
			UserBaseAlpha:      0.1,
			BatchEvery:         1000,
			BatchInterval:      15 * time.Minute,
			BatchMaxDuration:   time.Minute,
			ColdStartThreshold: 10,
			PairStripes:        256,
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file, and
// environment variables, then validates the merged result.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: struct defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: YAML config file (optional)
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (RANKLAB_SERVER_PORT → server.port)
	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// findConfigFile returns the config file path, honoring CONFIG_PATH first.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envToKey maps RANKLAB_SERVER_PORT to server.port. Only the first underscore
// becomes a section separator; the rest stay part of the key so multi-word
// keys like rate_limit_per_minute survive.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return s
	}
	return parts[0] + "." + parts[1]
}
