// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package tmdb is the discovery client for The Movie Database. All calls
// run behind a shared circuit breaker so a struggling upstream sheds load
// quickly instead of stalling every request.
package tmdb

// MediaType selects between the movie and TV endpoint families.
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

// Title is one discovery result. Movie and TV payloads are merged into a
// single shape; use DisplayTitle and ReleaseYear for the unified view.
type Title struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`          // movies
	Name         string  `json:"name,omitempty"`           // tv
	ReleaseDate  string  `json:"release_date,omitempty"`   // movies
	FirstAirDate string  `json:"first_air_date,omitempty"` // tv
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	GenreIDs     []int   `json:"genre_ids"`
}

// DisplayTitle returns the movie title or TV name, whichever is set.
func (t Title) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

// ReleaseYear returns the four-digit year, or "" when unknown.
func (t Title) ReleaseYear() string {
	date := t.ReleaseDate
	if date == "" {
		date = t.FirstAirDate
	}
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// Keyword tags a title for keyword-based discovery.
type Keyword struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs maps a TMDB title back to other databases. The pipeline
// needs the IMDb id because Stremio metas are keyed by it.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
}

// Details is a full title record including external ids.
type Details struct {
	Title
	ExternalIDs ExternalIDs `json:"external_ids"`
}

// DiscoverFilters bound the quality band for keyword discovery.
type DiscoverFilters struct {
	VoteCountMin   int
	VoteCountMax   int
	VoteAverageMin float64
	SortBy         string
}
