// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package userconfig models the per-user addon configuration that rides
// inside the install URL as a signed token. The raw Stremio credential never
// appears in logs or cache keys; callers use Fingerprint instead.
package userconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Limits on the user-tunable knobs. Values outside these bounds are
// rejected at configure time and again when a token is decoded.
const (
	MinRows = 1
	MaxRows = 20

	DefaultRows      = 5
	DefaultMinRating = 6.0
)

// UserConfig is everything a user chooses on the configure page. It is
// embedded in the install token, so fields must stay small and stable.
type UserConfig struct {
	// AuthKey is the Stremio account credential used to fetch the
	// library. Treated as a secret everywhere outside the upstream call.
	AuthKey string `json:"authKey" validate:"required"`

	// TMDBAPIKey overrides the server-wide TMDB key when set.
	TMDBAPIKey string `json:"tmdbApiKey,omitempty"`

	// MDBListAPIKey enables rating enrichment. Optional; without it the
	// pipeline falls back to TMDB vote averages.
	MDBListAPIKey string `json:"mdblistApiKey,omitempty"`

	// NumRows is how many seed-based catalog rows to build. Zero means
	// the default; Normalize fills it in.
	NumRows int `json:"numRows,omitempty" validate:"omitempty,min=1,max=20"`

	// MinRating filters out candidates scoring below this threshold on
	// the 0-10 scale. Zero means the default.
	MinRating float64 `json:"minRating,omitempty" validate:"omitempty,min=0,max=10"`

	// IncludeMovies and IncludeSeries toggle the two content types.
	// Pointers so "unset" is distinguishable from an explicit false.
	IncludeMovies *bool `json:"includeMovies,omitempty"`
	IncludeSeries *bool `json:"includeSeries,omitempty"`

	// UseLovedItems prefers explicitly loved library entries as seeds
	// over merely watched ones.
	UseLovedItems *bool `json:"useLovedItems,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize fills unset fields with their defaults. Safe to call more
// than once.
func (c *UserConfig) Normalize() {
	if c.NumRows == 0 {
		c.NumRows = DefaultRows
	}
	if c.MinRating == 0 {
		c.MinRating = DefaultMinRating
	}
	if c.IncludeMovies == nil {
		c.IncludeMovies = boolPtr(true)
	}
	if c.IncludeSeries == nil {
		c.IncludeSeries = boolPtr(true)
	}
	if c.UseLovedItems == nil {
		c.UseLovedItems = boolPtr(true)
	}
}

// Validate checks field constraints. Call Normalize first if defaults
// should be applied.
func (c *UserConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("user config validation: %w", err)
	}
	if c.IncludeMovies != nil && c.IncludeSeries != nil &&
		!*c.IncludeMovies && !*c.IncludeSeries {
		return fmt.Errorf("user config validation: at least one of includeMovies and includeSeries must be enabled")
	}
	return nil
}

// Fingerprint returns a stable hex digest of the user's credential,
// suitable for cache keys and log fields. The raw credential must never
// be used for either.
func (c *UserConfig) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.AuthKey))
	return hex.EncodeToString(sum[:16])
}

// WantsType reports whether the given content type ("movie" or "series")
// is enabled for this user.
func (c *UserConfig) WantsType(contentType string) bool {
	switch contentType {
	case "movie":
		return c.IncludeMovies == nil || *c.IncludeMovies
	case "series":
		return c.IncludeSeries == nil || *c.IncludeSeries
	default:
		return false
	}
}

func boolPtr(b bool) *bool { return &b }
