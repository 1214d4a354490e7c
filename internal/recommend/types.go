// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package recommend implements the recommendation pipeline: seed
// collection, per-seed discovery, rating enrichment, scoring, and
// catalog assembly.
package recommend

import (
	"fmt"
	"time"

	"github.com/suggestarr/suggestarr/internal/tmdb"
)

// SeedSource records why a library item became a seed.
type SeedSource string

const (
	SourceLoved   SeedSource = "loved"
	SourceWatched SeedSource = "watched"
)

// Seed weights. Loved items count double when scoring candidate
// frequency across seeds.
const (
	WeightLoved   = 2.0
	WeightWatched = 1.0
)

// SeedItem is one user history item used as a discovery starting point.
type SeedItem struct {
	// ExternalID is the canonical (IMDb) id from the library.
	ExternalID string         `json:"external_id"`
	MediaType  tmdb.MediaType `json:"media_type"`
	Title      string         `json:"title"`
	Source     SeedSource     `json:"source"`
	Weight     float64        `json:"weight"`
	Recency    time.Time      `json:"recency"`
}

// Candidate is one discovered title, progressively filled in by the
// enricher. CanonicalID stays empty until resolved; candidates without
// one never reach a row.
type Candidate struct {
	TMDBID       int            `json:"tmdb_id"`
	MediaType    tmdb.MediaType `json:"media_type"`
	Title        string         `json:"title"`
	Overview     string         `json:"overview"`
	PosterPath   string         `json:"poster_path"`
	BackdropPath string         `json:"backdrop_path"`
	ReleaseYear  string         `json:"release_year"`
	RawRating    float64        `json:"raw_rating"`
	VoteCount    int            `json:"vote_count"`

	CanonicalID     string  `json:"canonical_id,omitempty"`
	SecondaryRating float64 `json:"secondary_rating,omitempty"`
	HasSecondary    bool    `json:"has_secondary,omitempty"`
}

// NormalizedRating is the rating used for filtering and scoring: the
// secondary source when present, otherwise the discovery rating, clamped
// to the 0-10 scale.
func (c Candidate) NormalizedRating() float64 {
	r := c.RawRating
	if c.HasSecondary {
		r = c.SecondaryRating
	}
	if r < 0 {
		return 0
	}
	if r > 10 {
		return 10
	}
	return r
}

// ScoredCandidate is a Candidate with its row-ranking inputs attached.
type ScoredCandidate struct {
	Candidate
	Frequency      float64 `json:"frequency"`
	CompositeScore float64 `json:"composite_score"`
}

// MetaPreview is the item shape served to Stremio catalogs. Only fields
// the pipeline can actually resolve are carried.
type MetaPreview struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Poster      string `json:"poster,omitempty"`
	Background  string `json:"background,omitempty"`
	Description string `json:"description,omitempty"`
	ReleaseInfo string `json:"releaseInfo,omitempty"`
	IMDBRating  string `json:"imdbRating,omitempty"`
}

const posterBaseURL = "https://image.tmdb.org/t/p/w500"

// Preview converts a scored candidate to its catalog representation.
func (s ScoredCandidate) Preview() MetaPreview {
	p := MetaPreview{
		ID:          s.CanonicalID,
		Type:        contentType(s.MediaType),
		Name:        s.Title,
		Description: s.Overview,
		ReleaseInfo: s.ReleaseYear,
	}
	if s.PosterPath != "" {
		p.Poster = posterBaseURL + s.PosterPath
	}
	if s.BackdropPath != "" {
		p.Background = posterBaseURL + s.BackdropPath
	}
	if r := s.NormalizedRating(); r > 0 {
		p.IMDBRating = fmt.Sprintf("%.1f", r)
	}
	return p
}

// CatalogRow is one ordered recommendation row.
type CatalogRow struct {
	RowID string        `json:"row_id"`
	Title string        `json:"title"`
	Items []MetaPreview `json:"items"`
}

// Catalog is the assembled row set for one user and content type.
type Catalog struct {
	ContentType string       `json:"content_type"`
	Rows        []CatalogRow `json:"rows"`

	// Degraded records that enrichment fell back to primary-only
	// ratings while building this catalog.
	Degraded bool `json:"degraded,omitempty"`
}

// mediaType maps a Stremio content type to the discovery vocabulary.
func mediaType(contentType string) (tmdb.MediaType, bool) {
	switch contentType {
	case "movie":
		return tmdb.Movie, true
	case "series":
		return tmdb.TV, true
	default:
		return "", false
	}
}

// contentType is the inverse of mediaType.
func contentType(mt tmdb.MediaType) string {
	if mt == tmdb.TV {
		return "series"
	}
	return "movie"
}
