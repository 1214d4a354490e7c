// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/suggestarr/suggestarr/internal/cache"
	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
	"github.com/suggestarr/suggestarr/internal/tmdb"
)

// maxKeywordsPerSeed bounds how many keyword tags feed one discover
// query; more keywords dilute the query instead of sharpening it.
const maxKeywordsPerSeed = 5

// DiscoveryClient is the slice of the TMDB client the discoverer needs.
type DiscoveryClient interface {
	FindByIMDB(ctx context.Context, apiKey, imdbID string) (*tmdb.FindResult, error)
	Keywords(ctx context.Context, apiKey string, mediaType tmdb.MediaType, id int) ([]tmdb.Keyword, error)
	DiscoverByKeywords(ctx context.Context, apiKey string, mediaType tmdb.MediaType, keywordIDs []int, f tmdb.DiscoverFilters) ([]tmdb.Title, error)
	Recommendations(ctx context.Context, apiKey string, mediaType tmdb.MediaType, id int) ([]tmdb.Title, error)
	Popular(ctx context.Context, apiKey string, mediaType tmdb.MediaType) ([]tmdb.Title, error)
}

// Discoverer produces candidate lists per seed, preferring keyword-scoped
// discovery in a bounded quality band and falling back to the generic
// similar-titles endpoint exactly once per seed.
type Discoverer struct {
	client  DiscoveryClient
	cache   *cache.Manager
	filters tmdb.DiscoverFilters
	log     zerolog.Logger
}

// NewDiscoverer builds a Discoverer with the configured quality band.
func NewDiscoverer(client DiscoveryClient, mgr *cache.Manager, filters tmdb.DiscoverFilters) *Discoverer {
	return &Discoverer{
		client:  client,
		cache:   mgr,
		filters: filters,
		log:     logging.With().Str("component", "discovery").Logger(),
	}
}

// DiscoverSeed returns the candidates for one seed. Results are cached
// per seed id and media type, shared across users: discovery output does
// not depend on who asked, only whose API quota the calls run on. A seed
// whose upstream calls all fail yields an empty list, never an error.
func (d *Discoverer) DiscoverSeed(ctx context.Context, apiKey string, seed SeedItem) []Candidate {
	key := cache.Key(cache.ClassDiscovery, "shared", "seed", seed.ExternalID, string(seed.MediaType))
	candidates, _, err := cache.Fetch(ctx, d.cache, cache.ClassDiscovery, key,
		func(ctx context.Context) ([]Candidate, cache.Meta, error) {
			cands, err := d.discover(ctx, apiKey, seed)
			return cands, cache.Meta{}, err
		})
	if err != nil {
		d.log.Debug().Err(err).Str("seed", seed.ExternalID).Msg("discovery failed, seed yields nothing")
		return nil
	}
	metrics.DiscoveryCandidates.Observe(float64(len(candidates)))
	return candidates
}

func (d *Discoverer) discover(ctx context.Context, apiKey string, seed SeedItem) ([]Candidate, error) {
	tmdbID, err := d.resolveTMDBID(ctx, apiKey, seed)
	if err != nil {
		return nil, err
	}
	if tmdbID == 0 {
		return []Candidate{}, nil
	}

	keywords, err := d.client.Keywords(ctx, apiKey, seed.MediaType, tmdbID)
	if err != nil {
		d.log.Debug().Err(err).Str("seed", seed.ExternalID).Msg("keyword lookup failed")
		keywords = nil
	}

	var titles []tmdb.Title
	if len(keywords) > 0 {
		ids := make([]int, 0, maxKeywordsPerSeed)
		for _, kw := range keywords {
			ids = append(ids, kw.ID)
			if len(ids) == maxKeywordsPerSeed {
				break
			}
		}
		titles, err = d.client.DiscoverByKeywords(ctx, apiKey, seed.MediaType, ids, d.filters)
		if err != nil {
			return nil, fmt.Errorf("keyword discovery for %s: %w", seed.ExternalID, err)
		}
	} else {
		// No keywords to work with: one fallback to the generic
		// similar-titles list.
		metrics.DiscoveryFallbacks.Inc()
		d.log.Info().Str("seed", seed.ExternalID).Msg("no keywords, falling back to similar titles")
		titles, err = d.client.Recommendations(ctx, apiKey, seed.MediaType, tmdbID)
		if err != nil {
			return nil, fmt.Errorf("fallback discovery for %s: %w", seed.ExternalID, err)
		}
	}

	candidates := make([]Candidate, 0, len(titles))
	for _, title := range titles {
		if title.ID == tmdbID {
			continue // never recommend the seed itself
		}
		candidates = append(candidates, titleToCandidate(title, seed.MediaType))
	}
	return candidates, nil
}

// resolveTMDBID maps the seed's IMDb id to a TMDB id. Zero means the
// title is unknown upstream.
func (d *Discoverer) resolveTMDBID(ctx context.Context, apiKey string, seed SeedItem) (int, error) {
	found, err := d.client.FindByIMDB(ctx, apiKey, seed.ExternalID)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", seed.ExternalID, err)
	}
	results := found.MovieResults
	if seed.MediaType == tmdb.TV {
		results = found.TVResults
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].ID, nil
}

// PopularCandidates returns the popular feed as candidates, the
// cold-start fallback when a user has no usable seeds. Cached shared
// across users like seed discovery.
func (d *Discoverer) PopularCandidates(ctx context.Context, apiKey string, mt tmdb.MediaType) []Candidate {
	key := cache.Key(cache.ClassDiscovery, "shared", "popular", string(mt))
	candidates, _, err := cache.Fetch(ctx, d.cache, cache.ClassDiscovery, key,
		func(ctx context.Context) ([]Candidate, cache.Meta, error) {
			titles, err := d.client.Popular(ctx, apiKey, mt)
			if err != nil {
				return nil, cache.Meta{}, err
			}
			cands := make([]Candidate, 0, len(titles))
			for _, title := range titles {
				cands = append(cands, titleToCandidate(title, mt))
			}
			return cands, cache.Meta{}, nil
		})
	if err != nil {
		d.log.Warn().Err(err).Str("media_type", string(mt)).Msg("popular feed unavailable")
		return nil
	}
	return candidates
}

func titleToCandidate(title tmdb.Title, mt tmdb.MediaType) Candidate {
	return Candidate{
		TMDBID:       title.ID,
		MediaType:    mt,
		Title:        title.DisplayTitle(),
		Overview:     title.Overview,
		PosterPath:   title.PosterPath,
		BackdropPath: title.BackdropPath,
		ReleaseYear:  title.ReleaseYear(),
		RawRating:    title.VoteAverage,
		VoteCount:    title.VoteCount,
	}
}
