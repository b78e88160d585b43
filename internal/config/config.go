// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the service.
//
// Every constant the engine depends on is an explicit field here rather than
// an ambient global: the temporal smoothing offsets, the namespace filter, the
// snapshot cutoff fallback, the per-refresh page cap and the provider retry
// budget are all injected into components at construction.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Provider   ProviderConfig   `koanf:"provider"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Database   DatabaseConfig   `koanf:"database"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ProviderConfig holds settings for the MediaWiki edit provider.
type ProviderConfig struct {
	// Lang selects the wiki, e.g. "en" for en.wikipedia.org.
	Lang string `koanf:"lang" validate:"required"`

	// BaseURL overrides the https://<lang>.wikipedia.org default. Used in
	// tests and for request-host pinning behind internal proxies.
	BaseURL string `koanf:"base_url"`

	// UserAgent identifies this service to the MediaWiki API per the
	// Wikimedia User-Agent policy.
	UserAgent string `koanf:"user_agent" validate:"required"`

	// Retries bounds retry attempts for a failed API call.
	Retries int `koanf:"retries" validate:"gte=0,lte=10"`

	// RetryDelay is the base backoff between retries; doubled per attempt.
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gt=0"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RatePerSecond caps outbound API calls client-side.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gt=0"`

	// RateBurst is the limiter burst size.
	RateBurst int `koanf:"rate_burst" validate:"gte=1"`
}

// SimilarityConfig holds the tunables of the similarity engine.
type SimilarityConfig struct {
	// WindowOffsets smears each edit's hour across neighbouring hour
	// buckets so near-miss editing hours still overlap. Offsets are
	// relative hours; 0 must be covered by the window.
	WindowOffsets []int `koanf:"window_offsets" validate:"min=1"`

	// Namespaces is the set of wiki namespaces whose edits are in scope.
	Namespaces []int `koanf:"namespaces" validate:"min=1"`

	// GlobalCutoff is the fallback snapshot freshness boundary, used when
	// no snapshot is loaded (RFC 3339). A loaded snapshot's own cutoff
	// always takes precedence.
	GlobalCutoff string `koanf:"global_cutoff"`

	// MaxPagesPerRefresh caps distinct pages folded per refresh. Pages
	// beyond the cap are dropped for latency; this is a documented
	// approximation, not an error.
	MaxPagesPerRefresh int `koanf:"max_pages_per_refresh" validate:"gte=1"`

	// CoeditLimit bounds a user's stored neighbour list. Trailing entries
	// tying with the entry at the bound are retained.
	CoeditLimit int `koanf:"coedit_limit" validate:"gte=1"`

	// DefaultK is the result count when a query does not specify k.
	DefaultK int `koanf:"default_k" validate:"gte=1"`

	// MaxK caps the requested result count.
	MaxK int `koanf:"max_k" validate:"gte=1"`
}

// DatabaseConfig holds DuckDB snapshot store settings.
type DatabaseConfig struct {
	// Path to the DuckDB database file. Empty means in-memory, which is
	// only useful for tests and TSV-only startup.
	Path string `koanf:"path"`

	// ResourceDir optionally points at a directory of exported TSV files
	// (metadata.tsv, coedit_counts.tsv, temporal.tsv) to ingest at startup.
	ResourceDir string `koanf:"resource_dir"`

	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// APIConfig holds HTTP API behaviour settings.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// FollowupBaseURL is the public URL of this service, used to build
	// follow-up query links in responses.
	FollowupBaseURL string `koanf:"followup_base_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// GlobalCutoffTime parses the configured cutoff fallback.
// Returns the zero time when unset.
func (c *SimilarityConfig) GlobalCutoffTime() (time.Time, error) {
	if c.GlobalCutoff == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, c.GlobalCutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid similarity.global_cutoff %q: %w", c.GlobalCutoff, err)
	}
	return ts, nil
}

// validate is the shared validator instance; struct metadata is cached after
// the first use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural errors beyond what koanf
// unmarshaling can catch.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if _, err := c.Similarity.GlobalCutoffTime(); err != nil {
		return err
	}

	hasZero := false
	for _, off := range c.Similarity.WindowOffsets {
		if off <= -24 || off >= 24 {
			return fmt.Errorf("similarity.window_offsets entry %d out of range (-23..23)", off)
		}
		if off == 0 {
			hasZero = true
		}
	}
	if !hasZero {
		return fmt.Errorf("similarity.window_offsets must include 0")
	}

	if c.Similarity.DefaultK > c.Similarity.MaxK {
		return fmt.Errorf("similarity.default_k %d exceeds similarity.max_k %d",
			c.Similarity.DefaultK, c.Similarity.MaxK)
	}

	return nil
}
