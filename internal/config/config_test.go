// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero dimension", func(c *Config) { c.Vectors.Dimension = 0 }, true},
		{"zero result size", func(c *Config) { c.Ranking.ResultSize = 0 }, true},
		{"max below default size", func(c *Config) {
			c.Ranking.ResultSize = 50
			c.Ranking.MaxResultSize = 10
		}, true},
		{"diversity decay one", func(c *Config) { c.Ranking.DiversityDecay = 1.0 }, true},
		{"diversity floor negative", func(c *Config) { c.Ranking.DiversityFloor = -0.1 }, true},
		{"network factor above one", func(c *Config) { c.Ranking.NetworkFactor = 1.5 }, true},
		{"network factor one is fine", func(c *Config) { c.Ranking.NetworkFactor = 1.0 }, false},
		{"item rate one", func(c *Config) { c.Learning.ItemRate = 1.0 }, true},
		{"alpha zero", func(c *Config) { c.Learning.UserBaseAlpha = 0 }, true},
		{"batch every zero", func(c *Config) { c.Learning.BatchEvery = 0 }, true},
		{"nats enabled without url or embedded server", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
			c.NATS.EmbeddedServer = false
		}, true},
		{"nats enabled with embedded server", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
			c.NATS.EmbeddedServer = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	// Run from a directory without a config file so only defaults apply.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8457 {
		t.Errorf("default port = %d, want 8457", cfg.Server.Port)
	}
	if cfg.Vectors.Dimension != 128 {
		t.Errorf("default dimension = %d, want 128", cfg.Vectors.Dimension)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS should default to disabled")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RANKLAB_SERVER_PORT", "9100")
	t.Setenv("RANKLAB_RANKING_NETWORK_FACTOR", "0.5")
	t.Setenv("RANKLAB_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Ranking.NetworkFactor != 0.5 {
		t.Errorf("network factor = %v, want 0.5", cfg.Ranking.NetworkFactor)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("server:\n  port: 9200\nranking:\n  result_size: 15\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Server.Port)
	}
	if cfg.Ranking.ResultSize != 15 {
		t.Errorf("result size = %d, want 15", cfg.Ranking.ResultSize)
	}
	// Untouched keys keep defaults.
	if cfg.Ranking.MaxResultSize != 100 {
		t.Errorf("max result size = %d, want default 100", cfg.Ranking.MaxResultSize)
	}
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RANKLAB_SERVER_PORT", "server.port"},
		{"RANKLAB_SERVER_RATE_LIMIT_PER_MINUTE", "server.rate_limit_per_minute"},
		{"RANKLAB_LOG_LEVEL", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := envToKey(tt.in); got != tt.want {
				t.Errorf("envToKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
