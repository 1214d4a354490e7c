// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/suggestarr/suggestarr/internal/cache"
	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/mdblist"
	"github.com/suggestarr/suggestarr/internal/metrics"
	"github.com/suggestarr/suggestarr/internal/tmdb"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

// State is the request-scoped degradation flag. Once any secondary
// rating lookup exhausts its retry budget, the rest of the request skips
// secondary lookups and every artifact stored afterwards uses the
// shortened TTL. The flag is threaded explicitly and never crosses
// requests.
type State struct {
	mu       sync.Mutex
	degraded bool
}

// Degrade flips the request into degraded mode.
func (s *State) Degrade() {
	s.mu.Lock()
	if !s.degraded {
		s.degraded = true
		metrics.EnrichmentDegraded.Inc()
	}
	s.mu.Unlock()
}

// Degraded reports whether the request has degraded.
func (s *State) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// DetailsClient is the slice of the TMDB client the enricher needs.
type DetailsClient interface {
	Details(ctx context.Context, apiKey string, mediaType tmdb.MediaType, id int) (*tmdb.Details, error)
}

// RatingClient is the slice of the MDBList client the enricher needs.
type RatingClient interface {
	GetByIMDB(ctx context.Context, apiKey, imdbID string) (*mdblist.Rating, error)
}

// Enricher resolves canonical ids and secondary ratings for candidates,
// with bounded concurrency and per-item caching.
type Enricher struct {
	details       DetailsClient
	ratings       RatingClient
	cache         *cache.Manager
	maxConcurrent int64
	log           zerolog.Logger
}

// NewEnricher builds an Enricher; maxConcurrent caps parallel upstream
// lookups per request.
func NewEnricher(details DetailsClient, ratings RatingClient, mgr *cache.Manager, maxConcurrent int) *Enricher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Enricher{
		details:       details,
		ratings:       ratings,
		cache:         mgr,
		maxConcurrent: int64(maxConcurrent),
		log:           logging.With().Str("component", "enrich").Logger(),
	}
}

// Enrich fills CanonicalID and SecondaryRating on candidates in place.
// Individual lookup failures leave the candidate unenriched; a rating
// lookup that exhausts its retries degrades the whole request via st.
// Enrichment never removes a candidate and never returns an error.
func (e *Enricher) Enrich(ctx context.Context, user *userconfig.UserConfig, candidates []*Candidate, st *State) {
	sem := semaphore.NewWeighted(e.maxConcurrent)
	var wg sync.WaitGroup

	for _, cand := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // context gone, keep whatever is enriched so far
		}
		wg.Add(1)
		go func(cand *Candidate) {
			defer wg.Done()
			defer sem.Release(1)
			e.enrichOne(ctx, user, cand, st)
		}(cand)
	}
	wg.Wait()
}

func (e *Enricher) enrichOne(ctx context.Context, user *userconfig.UserConfig, cand *Candidate, st *State) {
	if cand.CanonicalID == "" {
		e.resolveCanonical(ctx, user.TMDBAPIKey, cand, st)
	}
	if cand.CanonicalID == "" {
		return // nothing to key the rating lookup on
	}
	if user.MDBListAPIKey == "" || st.Degraded() {
		return
	}
	e.resolveSecondary(ctx, user.MDBListAPIKey, cand, st)
}

// resolveCanonical maps the TMDB id to an IMDb id via the details
// endpoint, cached per title.
func (e *Enricher) resolveCanonical(ctx context.Context, apiKey string, cand *Candidate, st *State) {
	key := cache.Key(cache.ClassDiscovery, "shared", "details", strconv.Itoa(cand.TMDBID), string(cand.MediaType))
	details, _, err := cache.Fetch(ctx, e.cache, cache.ClassDiscovery, key,
		func(ctx context.Context) (*tmdb.Details, cache.Meta, error) {
			d, err := e.details.Details(ctx, apiKey, cand.MediaType, cand.TMDBID)
			return d, cache.Meta{Degraded: st.Degraded()}, err
		})
	if err != nil {
		e.log.Debug().Err(err).Int("tmdb_id", cand.TMDBID).Msg("details lookup failed")
		return
	}

	cand.CanonicalID = details.ExternalIDs.IMDBID
	if cand.Overview == "" {
		cand.Overview = details.Overview
	}
	if cand.PosterPath == "" {
		cand.PosterPath = details.PosterPath
	}
	if cand.ReleaseYear == "" {
		cand.ReleaseYear = details.ReleaseYear()
	}
}

// resolveSecondary fetches the MDBList rating, cached long-term per
// canonical id. Retry exhaustion degrades the request.
func (e *Enricher) resolveSecondary(ctx context.Context, apiKey string, cand *Candidate, st *State) {
	key := cache.Key(cache.ClassRatings, "shared", cand.CanonicalID)
	rating, _, err := cache.Fetch(ctx, e.cache, cache.ClassRatings, key,
		func(ctx context.Context) (*mdblist.Rating, cache.Meta, error) {
			r, err := e.ratings.GetByIMDB(ctx, apiKey, cand.CanonicalID)
			return r, cache.Meta{Degraded: st.Degraded()}, err
		})
	if err != nil {
		if errors.Is(err, mdblist.ErrNoAPIKey) {
			return
		}
		st.Degrade()
		e.log.Warn().Err(err).Str("canonical_id", cand.CanonicalID).
			Msg("rating lookup exhausted retries, request degraded to primary-only")
		return
	}

	if agg := rating.Aggregate(); agg > 0 {
		cand.SecondaryRating = agg
		cand.HasSecondary = true
	}
}
