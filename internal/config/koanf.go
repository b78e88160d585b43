// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/similarusers/config.yaml",
	"/etc/similarusers/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envSections are the recognized top-level sections for environment variable
// mapping: SIMILARITY_MAX_PAGES_PER_REFRESH -> similarity.max_pages_per_refresh.
var envSections = []string{"server", "provider", "similarity", "database", "api", "logging"}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5000,
			Timeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Lang:          "en",
			BaseURL:       "",
			UserAgent:     "similarusers (https://github.com/wikimedia/similarusers)",
			Retries:       3,
			RetryDelay:    500 * time.Millisecond,
			Timeout:       15 * time.Second,
			RatePerSecond: 10,
			RateBurst:     5,
		},
		Similarity: SimilarityConfig{
			WindowOffsets:      []int{-1, 0, 1},
			Namespaces:         []int{0},
			GlobalCutoff:       "",
			MaxPagesPerRefresh: 50,
			CoeditLimit:        250,
			DefaultK:           50,
			MaxK:               250,
		},
		Database: DatabaseConfig{
			Path:        "/data/similarusers.duckdb",
			ResourceDir: "",
			MaxMemory:   "2GB",
			Threads:     0, // 0 = runtime.NumCPU()
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			FollowupBaseURL: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources, highest priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (SERVER_PORT, SIMILARITY_NAMESPACES, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths:
// SIMILARITY_MAX_PAGES_PER_REFRESH -> similarity.max_pages_per_refresh.
// Variables outside the known sections are ignored.
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	for _, section := range envSections {
		prefix := section + "_"
		if strings.HasPrefix(lower, prefix) {
			return section + "." + strings.TrimPrefix(lower, prefix)
		}
	}
	return ""
}

// processSliceFields re-parses slice-typed keys that arrived as plain strings
// from the environment (e.g. SIMILARITY_NAMESPACES="0,1,3").
func processSliceFields(k *koanf.Koanf) error {
	for path, isInt := range map[string]bool{
		"similarity.window_offsets": true,
		"similarity.namespaces":     true,
		"api.cors_origins":          false,
	} {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		if isInt {
			ints := make([]int, 0, len(parts))
			for _, p := range parts {
				n, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					return fmt.Errorf("invalid integer %q in %s: %w", p, path, err)
				}
				ints = append(ints, n)
			}
			if err := k.Set(path, ints); err != nil {
				return err
			}
			continue
		}
		strs := make([]string, 0, len(parts))
		for _, p := range parts {
			strs = append(strs, strings.TrimSpace(p))
		}
		if err := k.Set(path, strs); err != nil {
			return err
		}
	}
	return nil
}
