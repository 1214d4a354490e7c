// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package config loads and validates the application configuration from
// struct defaults, an optional YAML file, and SUGGESTARR_-prefixed
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration. Every field has a documented
// default applied by defaultConfig(); file and environment values override.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Token   TokenConfig   `koanf:"token"`
	Stremio StremioConfig `koanf:"stremio"`
	TMDB    TMDBConfig    `koanf:"tmdb"`
	MDBList MDBListConfig `koanf:"mdblist"`
	Cache   CacheConfig   `koanf:"cache"`
	Limits  LimitsConfig  `koanf:"limits"`
	Scoring ScoringConfig `koanf:"scoring"`
	Warming WarmingConfig `koanf:"warming"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `koanf:"host"`

	// Port is the listen port. Default: 7000
	Port int `koanf:"port"`

	// ReadTimeout/WriteTimeout bound request handling. Default: 30s each.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RateLimitReqs is the per-IP request budget per RateLimitWindow.
	// Default: 100 per minute.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error. Default: info
	Level string `koanf:"level"`

	// Format: json or console. Default: json
	Format string `koanf:"format"`
}

// TokenConfig holds the configuration-token signing settings.
type TokenConfig struct {
	// Salt is the HMAC signing secret for user configuration tokens.
	// Required in production; a random salt makes tokens single-process.
	Salt string `koanf:"salt"`
}

// StremioConfig holds library service settings.
type StremioConfig struct {
	// APIURL is the Stremio API origin; the client appends the
	// datastore path itself.
	APIURL string `koanf:"api_url"`

	// RateLimit is the request budget per second. Default: 5.
	RateLimit int `koanf:"rate_limit"`

	// Timeout bounds a single library fetch. Default: 15s.
	Timeout time.Duration `koanf:"timeout"`
}

// TMDBConfig holds discovery service settings.
type TMDBConfig struct {
	// BaseURL is the TMDB API v3 root.
	BaseURL string `koanf:"base_url"`

	// APIKey is the server-wide default key; user configs may override.
	APIKey string `koanf:"api_key"`

	// RateLimit is the request budget per second.
	// TMDB allows 50/s; default 40 leaves headroom.
	RateLimit int `koanf:"rate_limit"`

	// Timeout bounds a single API call. Default: 10s.
	Timeout time.Duration `koanf:"timeout"`

	// Discover filters for niche discovery.
	Discover DiscoverConfig `koanf:"discover"`
}

// DiscoverConfig tunes the niche-discovery vote band and rating floor.
type DiscoverConfig struct {
	// VoteCountMin filters out items with too few votes to trust.
	// Default: 50.
	VoteCountMin int `koanf:"vote_count_min"`

	// VoteCountMax filters out blockbusters. Default: 5000.
	VoteCountMax int `koanf:"vote_count_max"`

	// MinAverage is the minimum average rating. Default: 7.0.
	MinAverage float64 `koanf:"min_average"`
}

// MDBListConfig holds rating service settings.
type MDBListConfig struct {
	// BaseURL is the MDBList API root.
	BaseURL string `koanf:"base_url"`

	// APIKey is the server-wide default key; user configs may override.
	APIKey string `koanf:"api_key"`

	// RateLimit is the request budget per second. Default: 10 (conservative).
	RateLimit int `koanf:"rate_limit"`

	// Timeout bounds a single API call. Default: 10s.
	Timeout time.Duration `koanf:"timeout"`
}

// CacheConfig holds cache store settings and the TTL tiers.
type CacheConfig struct {
	// Path is the Badger directory. Empty selects the in-memory store.
	Path string `koanf:"path"`

	// TTL tiers per artifact class.
	// Library snapshot: 6h. Per-seed discovery merge: 24h.
	// Rating lookups: 7d. Assembled catalog row: 1h.
	TTLLibrary   time.Duration `koanf:"ttl_library"`
	TTLDiscovery time.Duration `koanf:"ttl_discovery"`
	TTLRatings   time.Duration `koanf:"ttl_ratings"`
	TTLCatalog   time.Duration `koanf:"ttl_catalog"`

	// TTLDegraded replaces the tier TTL for artifacts produced while the
	// rating service is degraded, so the pipeline retries sooner.
	// Default: 15m.
	TTLDegraded time.Duration `koanf:"ttl_degraded"`

	// StaleGrace is how long an expired entry stays readable for
	// stale-while-revalidate serving. Default: 24h.
	StaleGrace time.Duration `koanf:"stale_grace"`
}

// LimitsConfig holds pipeline fan-out and latency limits.
type LimitsConfig struct {
	// MaxSeeds caps the seed list. Default: 10.
	MaxSeeds int `koanf:"max_seeds"`

	// MaxPerSeed caps candidates per row. Default: 20.
	MaxPerSeed int `koanf:"max_per_seed"`

	// MaxConcurrent caps simultaneous in-flight calls per upstream.
	// Default: 10.
	MaxConcurrent int `koanf:"max_concurrent"`

	// SoftDeadline bounds a whole catalog request; work still pending at
	// the deadline yields partial results. Default: 10s.
	SoftDeadline time.Duration `koanf:"soft_deadline"`
}

// ScoringConfig exposes the composite-score weighting constants.
// The exact values are a tunable, not a correctness requirement.
type ScoringConfig struct {
	// FrequencyWeight scales the seed-frequency contribution. Default: 0.6.
	FrequencyWeight float64 `koanf:"frequency_weight"`

	// RatingWeight scales the normalized-rating contribution. Default: 0.4.
	RatingWeight float64 `koanf:"rating_weight"`
}

// WarmingConfig holds background cache warmer settings.
type WarmingConfig struct {
	// Enabled toggles the warmer service. Default: true.
	Enabled bool `koanf:"enabled"`

	// Interval between warming cycles. Default: 3h.
	Interval time.Duration `koanf:"interval"`

	// Threshold selects entries nearing expiry: refresh when remaining
	// freshness drops below it. Default: 15m.
	Threshold time.Duration `koanf:"threshold"`

	// MaxUsers caps the active-user registry. Default: 256.
	MaxUsers int `koanf:"max_users"`

	// UserTTL evicts users inactive for longer than this. Default: 24h.
	UserTTL time.Duration `koanf:"user_ttl"`
}

// defaultConfig returns a Config with all documented defaults applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Token: TokenConfig{
			Salt: "",
		},
		Stremio: StremioConfig{
			APIURL:    "https://api.strem.io",
			RateLimit: 5,
			Timeout:   15 * time.Second,
		},
		TMDB: TMDBConfig{
			BaseURL:   "https://api.themoviedb.org/3",
			APIKey:    "",
			RateLimit: 40,
			Timeout:   10 * time.Second,
			Discover: DiscoverConfig{
				VoteCountMin: 50,
				VoteCountMax: 5000,
				MinAverage:   7.0,
			},
		},
		MDBList: MDBListConfig{
			BaseURL:   "https://mdblist.com/api/",
			APIKey:    "",
			RateLimit: 10,
			Timeout:   10 * time.Second,
		},
		Cache: CacheConfig{
			Path:         "/data/cache",
			TTLLibrary:   6 * time.Hour,
			TTLDiscovery: 24 * time.Hour,
			TTLRatings:   7 * 24 * time.Hour,
			TTLCatalog:   time.Hour,
			TTLDegraded:  15 * time.Minute,
			StaleGrace:   24 * time.Hour,
		},
		Limits: LimitsConfig{
			MaxSeeds:      10,
			MaxPerSeed:    20,
			MaxConcurrent: 10,
			SoftDeadline:  10 * time.Second,
		},
		Scoring: ScoringConfig{
			FrequencyWeight: 0.6,
			RatingWeight:    0.4,
		},
		Warming: WarmingConfig{
			Enabled:   true,
			Interval:  3 * time.Hour,
			Threshold: 15 * time.Minute,
			MaxUsers:  256,
			UserTTL:   24 * time.Hour,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Stremio.APIURL == "" {
		return fmt.Errorf("stremio.api_url must not be empty")
	}
	if c.TMDB.BaseURL == "" {
		return fmt.Errorf("tmdb.base_url must not be empty")
	}
	if c.MDBList.BaseURL == "" {
		return fmt.Errorf("mdblist.base_url must not be empty")
	}
	if c.TMDB.Discover.VoteCountMin < 0 {
		return fmt.Errorf("tmdb.discover.vote_count_min must be non-negative, got %d", c.TMDB.Discover.VoteCountMin)
	}
	if c.TMDB.Discover.VoteCountMax < c.TMDB.Discover.VoteCountMin {
		return fmt.Errorf("tmdb.discover.vote_count_max must be >= vote_count_min, got %d < %d",
			c.TMDB.Discover.VoteCountMax, c.TMDB.Discover.VoteCountMin)
	}
	if c.TMDB.Discover.MinAverage < 0 || c.TMDB.Discover.MinAverage > 10 {
		return fmt.Errorf("tmdb.discover.min_average must be in [0, 10], got %f", c.TMDB.Discover.MinAverage)
	}
	for name, d := range map[string]time.Duration{
		"cache.ttl_library":   c.Cache.TTLLibrary,
		"cache.ttl_discovery": c.Cache.TTLDiscovery,
		"cache.ttl_ratings":   c.Cache.TTLRatings,
		"cache.ttl_catalog":   c.Cache.TTLCatalog,
		"cache.ttl_degraded":  c.Cache.TTLDegraded,
		"cache.stale_grace":   c.Cache.StaleGrace,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.Limits.MaxSeeds < 1 {
		return fmt.Errorf("limits.max_seeds must be positive, got %d", c.Limits.MaxSeeds)
	}
	if c.Limits.MaxPerSeed < 1 {
		return fmt.Errorf("limits.max_per_seed must be positive, got %d", c.Limits.MaxPerSeed)
	}
	if c.Limits.MaxConcurrent < 1 {
		return fmt.Errorf("limits.max_concurrent must be positive, got %d", c.Limits.MaxConcurrent)
	}
	if c.Limits.SoftDeadline <= 0 {
		return fmt.Errorf("limits.soft_deadline must be positive, got %v", c.Limits.SoftDeadline)
	}
	if c.Scoring.FrequencyWeight < 0 || c.Scoring.RatingWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative, got frequency=%f rating=%f",
			c.Scoring.FrequencyWeight, c.Scoring.RatingWeight)
	}
	if c.Warming.Enabled {
		if c.Warming.Interval <= 0 {
			return fmt.Errorf("warming.interval must be positive, got %v", c.Warming.Interval)
		}
		if c.Warming.MaxUsers < 1 {
			return fmt.Errorf("warming.max_users must be positive, got %d", c.Warming.MaxUsers)
		}
	}
	return nil
}
