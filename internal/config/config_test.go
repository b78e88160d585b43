// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Server defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}

	// Provider defaults
	if cfg.Provider.Lang != "en" {
		t.Errorf("Provider.Lang = %q, want en", cfg.Provider.Lang)
	}
	if cfg.Provider.Retries != 3 {
		t.Errorf("Provider.Retries = %d, want 3", cfg.Provider.Retries)
	}
	if cfg.Provider.RatePerSecond != 10 {
		t.Errorf("Provider.RatePerSecond = %v, want 10", cfg.Provider.RatePerSecond)
	}
	if cfg.Provider.UserAgent == "" {
		t.Error("Provider.UserAgent should have a default")
	}

	// Similarity defaults
	if len(cfg.Similarity.WindowOffsets) != 3 {
		t.Errorf("Similarity.WindowOffsets = %v, want [-1 0 1]", cfg.Similarity.WindowOffsets)
	}
	if len(cfg.Similarity.Namespaces) != 1 || cfg.Similarity.Namespaces[0] != 0 {
		t.Errorf("Similarity.Namespaces = %v, want [0]", cfg.Similarity.Namespaces)
	}
	if cfg.Similarity.MaxPagesPerRefresh != 50 {
		t.Errorf("Similarity.MaxPagesPerRefresh = %d, want 50", cfg.Similarity.MaxPagesPerRefresh)
	}
	if cfg.Similarity.CoeditLimit != 250 {
		t.Errorf("Similarity.CoeditLimit = %d, want 250", cfg.Similarity.CoeditLimit)
	}
	if cfg.Similarity.DefaultK != 50 {
		t.Errorf("Similarity.DefaultK = %d, want 50", cfg.Similarity.DefaultK)
	}
	if cfg.Similarity.MaxK != 250 {
		t.Errorf("Similarity.MaxK = %d, want 250", cfg.Similarity.MaxK)
	}

	// Database defaults
	if cfg.Database.Path != "/data/similarusers.duckdb" {
		t.Errorf("Database.Path = %q, want /data/similarusers.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB", cfg.Database.MaxMemory)
	}

	// API defaults
	if cfg.API.RateLimitReqs != 100 {
		t.Errorf("API.RateLimitReqs = %d, want 100", cfg.API.RateLimitReqs)
	}
	if cfg.API.RateLimitWindow != time.Minute {
		t.Errorf("API.RateLimitWindow = %v, want 1m", cfg.API.RateLimitWindow)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}

	// Defaults must validate on their own
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig() should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name mapping
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Server
		{"SERVER_PORT", "server.port"},
		{"SERVER_HOST", "server.host"},
		{"SERVER_TIMEOUT", "server.timeout"},

		// Provider
		{"PROVIDER_LANG", "provider.lang"},
		{"PROVIDER_BASE_URL", "provider.base_url"},
		{"PROVIDER_USER_AGENT", "provider.user_agent"},
		{"PROVIDER_RATE_PER_SECOND", "provider.rate_per_second"},

		// Similarity
		{"SIMILARITY_WINDOW_OFFSETS", "similarity.window_offsets"},
		{"SIMILARITY_NAMESPACES", "similarity.namespaces"},
		{"SIMILARITY_MAX_PAGES_PER_REFRESH", "similarity.max_pages_per_refresh"},
		{"SIMILARITY_DEFAULT_K", "similarity.default_k"},

		// Database
		{"DATABASE_PATH", "database.path"},
		{"DATABASE_RESOURCE_DIR", "database.resource_dir"},
		{"DATABASE_MAX_MEMORY", "database.max_memory"},

		// API
		{"API_RATE_LIMIT_REQS", "api.rate_limit_reqs"},
		{"API_FOLLOWUP_BASE_URL", "api.followup_base_url"},

		// Logging
		{"LOGGING_LEVEL", "logging.level"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := envTransformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestLoadWithEnvVars tests loading configuration from environment variables
func TestLoadWithEnvVars(t *testing.T) {
	os.Clearenv()

	os.Setenv("SERVER_PORT", "9000")
	os.Setenv("PROVIDER_LANG", "de")
	os.Setenv("LOGGING_LEVEL", "debug")
	os.Setenv("SIMILARITY_NAMESPACES", "0,1,3")
	os.Setenv("SIMILARITY_WINDOW_OFFSETS", "-2,-1,0,1,2")
	os.Setenv("API_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Provider.Lang != "de" {
		t.Errorf("Provider.Lang = %q, want de", cfg.Provider.Lang)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Comma-separated slice fields from the environment
	wantNS := []int{0, 1, 3}
	if len(cfg.Similarity.Namespaces) != len(wantNS) {
		t.Fatalf("Similarity.Namespaces = %v, want %v", cfg.Similarity.Namespaces, wantNS)
	}
	for i, ns := range wantNS {
		if cfg.Similarity.Namespaces[i] != ns {
			t.Errorf("Similarity.Namespaces[%d] = %d, want %d", i, cfg.Similarity.Namespaces[i], ns)
		}
	}
	if len(cfg.Similarity.WindowOffsets) != 5 {
		t.Errorf("Similarity.WindowOffsets = %v, want 5 entries", cfg.Similarity.WindowOffsets)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[0] != "https://a.example" {
		t.Errorf("API.CORSOrigins = %v, want [https://a.example https://b.example]", cfg.API.CORSOrigins)
	}

	// Defaults still applied for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB (default)", cfg.Database.MaxMemory)
	}
}

// TestLoadWithConfigFile tests loading configuration from a YAML file,
// and that environment variables override the file
func TestLoadWithConfigFile(t *testing.T) {
	os.Clearenv()

	tmpDir := t.TempDir()
	configContent := `
server:
  port: 8080
provider:
  lang: fr
  user_agent: "similarusers-test"
similarity:
  default_k: 25
  max_k: 100
logging:
  level: warn
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv(ConfigPathEnvVar, configPath)
	os.Setenv("SERVER_PORT", "8081") // env wins over file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081 (env over file)", cfg.Server.Port)
	}
	if cfg.Provider.Lang != "fr" {
		t.Errorf("Provider.Lang = %q, want fr", cfg.Provider.Lang)
	}
	if cfg.Provider.UserAgent != "similarusers-test" {
		t.Errorf("Provider.UserAgent = %q, want similarusers-test", cfg.Provider.UserAgent)
	}
	if cfg.Similarity.DefaultK != 25 {
		t.Errorf("Similarity.DefaultK = %d, want 25", cfg.Similarity.DefaultK)
	}
	if cfg.Similarity.MaxK != 100 {
		t.Errorf("Similarity.MaxK = %d, want 100", cfg.Similarity.MaxK)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

// TestValidate exercises the structural checks beyond struct tags
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "window offsets without zero",
			mutate: func(c *Config) {
				c.Similarity.WindowOffsets = []int{-1, 1}
			},
			wantErr: true,
		},
		{
			name: "window offset out of range",
			mutate: func(c *Config) {
				c.Similarity.WindowOffsets = []int{0, 24}
			},
			wantErr: true,
		},
		{
			name: "default_k exceeds max_k",
			mutate: func(c *Config) {
				c.Similarity.DefaultK = 300
				c.Similarity.MaxK = 100
			},
			wantErr: true,
		},
		{
			name: "invalid global cutoff",
			mutate: func(c *Config) {
				c.Similarity.GlobalCutoff = "not-a-timestamp"
			},
			wantErr: true,
		},
		{
			name: "valid global cutoff",
			mutate: func(c *Config) {
				c.Similarity.GlobalCutoff = "2026-01-01T00:00:00Z"
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantErr: true,
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Server.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "missing user agent",
			mutate: func(c *Config) {
				c.Provider.UserAgent = ""
			},
			wantErr: true,
		},
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

// TestGlobalCutoffTime verifies cutoff fallback parsing
func TestGlobalCutoffTime(t *testing.T) {
	c := SimilarityConfig{}
	ts, err := c.GlobalCutoffTime()
	if err != nil {
		t.Fatalf("GlobalCutoffTime() error = %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("empty cutoff should parse to zero time, got %v", ts)
	}

	c.GlobalCutoff = "2026-02-03T04:05:06Z"
	ts, err = c.GlobalCutoffTime()
	if err != nil {
		t.Fatalf("GlobalCutoffTime() error = %v", err)
	}
	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("GlobalCutoffTime() = %v, want %v", ts, want)
	}

	c.GlobalCutoff = "yesterday"
	if _, err := c.GlobalCutoffTime(); err == nil {
		t.Error("GlobalCutoffTime() should fail on malformed input")
	}
}
