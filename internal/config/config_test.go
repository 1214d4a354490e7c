// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package config

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultTTLTiers(t *testing.T) {
	cfg := defaultConfig()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"library", cfg.Cache.TTLLibrary, 6 * time.Hour},
		{"discovery", cfg.Cache.TTLDiscovery, 24 * time.Hour},
		{"ratings", cfg.Cache.TTLRatings, 7 * 24 * time.Hour},
		{"catalog", cfg.Cache.TTLCatalog, time.Hour},
		{"degraded", cfg.Cache.TTLDegraded, 15 * time.Minute},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("TTL tier %s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

// The upstream clients append their own request paths, so the default
// URLs must be bare origins (plus the mdblist prefix); a path here would
// be doubled on every request.
func TestDefaultUpstreamURLsCarryNoEndpointPath(t *testing.T) {
	cfg := defaultConfig()

	stremioURL, err := url.Parse(cfg.Stremio.APIURL)
	if err != nil {
		t.Fatalf("parse stremio.api_url: %v", err)
	}
	if stremioURL.Path != "" {
		t.Errorf("stremio.api_url = %q carries path %q, the client appends /api/datastoreGet itself",
			cfg.Stremio.APIURL, stremioURL.Path)
	}

	if strings.Contains(cfg.TMDB.BaseURL, "?") || strings.HasSuffix(cfg.TMDB.BaseURL, "/") {
		t.Errorf("tmdb.base_url = %q should not end in a separator", cfg.TMDB.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "server.port",
		},
		{
			name:   "inverted vote band",
			mutate: func(c *Config) { c.TMDB.Discover.VoteCountMax = 10 },
			want:   "vote_count_max",
		},
		{
			name:   "zero catalog ttl",
			mutate: func(c *Config) { c.Cache.TTLCatalog = 0 },
			want:   "cache.ttl_catalog",
		},
		{
			name:   "zero seeds",
			mutate: func(c *Config) { c.Limits.MaxSeeds = 0 },
			want:   "limits.max_seeds",
		},
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Scoring.RatingWeight = -1 },
			want:   "scoring weights",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SUGGESTARR_SERVER_PORT", "server.port"},
		{"SUGGESTARR_CACHE_TTL_CATALOG", "cache.ttl_catalog"},
		{"SUGGESTARR_TMDB_DISCOVER__VOTE_COUNT_MIN", "tmdb.discover.vote_count_min"},
		{"SUGGESTARR_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
