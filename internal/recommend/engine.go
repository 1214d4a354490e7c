// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/suggestarr/suggestarr/internal/cache"
	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/tmdb"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

// ContentTypes lists the catalog types the engine can build.
var ContentTypes = []string{"movie", "series"}

// EngineConfig carries the pipeline limits and scoring weights.
type EngineConfig struct {
	MaxPerSeed    int
	MaxConcurrent int
	SoftDeadline  time.Duration
	Weights       Weights
}

// Engine assembles recommendation catalogs: seeds in, ordered rows out,
// with every stage flowing through the cache manager.
type Engine struct {
	seeds  *SeedCollector
	disc   *Discoverer
	enrich *Enricher
	cache  *cache.Manager
	cfg    EngineConfig
	log    zerolog.Logger
}

// NewEngine wires the pipeline stages together.
func NewEngine(seeds *SeedCollector, disc *Discoverer, enrich *Enricher, mgr *cache.Manager, cfg EngineConfig) *Engine {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Engine{
		seeds:  seeds,
		disc:   disc,
		enrich: enrich,
		cache:  mgr,
		cfg:    cfg,
		log:    logging.With().Str("component", "engine").Logger(),
	}
}

// Rows returns the catalog for one user and content type, from cache
// when fresh and rebuilt under a compute lock otherwise. A catalog built
// during a degraded request is cached with the shortened TTL.
func (e *Engine) Rows(ctx context.Context, user *userconfig.UserConfig, ctype string) (*Catalog, error) {
	if _, ok := mediaType(ctype); !ok {
		return nil, fmt.Errorf("unknown content type %q", ctype)
	}
	if !user.WantsType(ctype) {
		return &Catalog{ContentType: ctype}, nil
	}

	catalog, src, err := cache.Fetch(ctx, e.cache, cache.ClassCatalog, e.catalogKey(user, ctype),
		func(ctx context.Context) (Catalog, cache.Meta, error) {
			return e.build(ctx, user, ctype)
		})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("type", ctype).Stringer("source", src).Int("rows", len(catalog.Rows)).Msg("catalog served")
	return &catalog, nil
}

// WarmUser refreshes the user's catalogs that are missing or will go
// stale within horizon. Returns how many catalogs were recomputed.
func (e *Engine) WarmUser(ctx context.Context, user *userconfig.UserConfig, horizon time.Duration) int {
	refreshed := 0
	for _, ctype := range ContentTypes {
		if !user.WantsType(ctype) {
			continue
		}
		key := e.catalogKey(user, ctype)
		if !e.cache.ShouldRefresh(cache.ClassCatalog, key, horizon) {
			continue
		}
		_, err := cache.Refresh(ctx, e.cache, cache.ClassCatalog, key,
			func(ctx context.Context) (Catalog, cache.Meta, error) {
				return e.build(ctx, user, ctype)
			})
		if err != nil {
			e.log.Warn().Err(err).Str("type", ctype).Str("user", user.Fingerprint()).Msg("warm refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed
}

// catalogKey covers every knob that changes catalog content, so two
// users with identical settings but different credentials never share an
// entry, and a settings change is a clean miss.
func (e *Engine) catalogKey(user *userconfig.UserConfig, ctype string) string {
	return cache.Key(cache.ClassCatalog, user.Fingerprint(),
		ctype,
		strconv.Itoa(user.NumRows),
		strconv.FormatFloat(user.MinRating, 'f', 2, 64),
		strconv.FormatBool(user.UseLovedItems == nil || *user.UseLovedItems),
		strconv.FormatBool(user.MDBListAPIKey != ""),
	)
}

// build runs the full pipeline under the soft deadline. Stages that time
// out contribute empty units; build returns whatever rows the remaining
// budget produced.
func (e *Engine) build(ctx context.Context, user *userconfig.UserConfig, ctype string) (Catalog, cache.Meta, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SoftDeadline)
	defer cancel()

	start := time.Now()
	st := &State{}
	mt, _ := mediaType(ctype)

	seeds, watched := e.seeds.Collect(ctx, user, ctype)
	perSeed := e.discoverAll(ctx, user.TMDBAPIKey, seeds)
	e.enrichUnion(ctx, user, perSeed, st)

	opts := ScoreOptions{
		Weights:   e.cfg.Weights,
		MinRating: user.MinRating,
		MaxItems:  e.cfg.MaxPerSeed,
		Watched:   watched,
	}
	freq := FrequencyMap(seeds, perSeed)

	catalog := Catalog{ContentType: ctype}
	for i, seed := range seeds {
		if len(catalog.Rows) == user.NumRows {
			break
		}
		items := BuildRow(perSeed[i], freq, opts)
		if len(items) == 0 {
			continue
		}
		catalog.Rows = append(catalog.Rows, CatalogRow{
			RowID: fmt.Sprintf("suggestarr-%s-%d", ctype, len(catalog.Rows)),
			Title: rowTitle(seed),
			Items: previews(items),
		})
	}

	if len(catalog.Rows) == 0 {
		if row, ok := e.popularRow(ctx, user, ctype, mt, opts, st); ok {
			catalog.Rows = append(catalog.Rows, row)
		}
	}

	catalog.Degraded = st.Degraded()
	e.log.Info().
		Str("type", ctype).
		Str("user", user.Fingerprint()).
		Int("seeds", len(seeds)).
		Int("rows", len(catalog.Rows)).
		Bool("degraded", catalog.Degraded).
		Dur("elapsed", time.Since(start)).
		Msg("catalog built")

	return catalog, cache.Meta{Degraded: st.Degraded()}, nil
}

// discoverAll fans discovery out across seeds with bounded concurrency.
// Result order matches seed order.
func (e *Engine) discoverAll(ctx context.Context, apiKey string, seeds []SeedItem) [][]Candidate {
	perSeed := make([][]Candidate, len(seeds))
	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrent))
	var wg sync.WaitGroup

	for i, seed := range seeds {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, seed SeedItem) {
			defer wg.Done()
			defer sem.Release(1)
			perSeed[i] = e.disc.DiscoverSeed(ctx, apiKey, seed)
		}(i, seed)
	}
	wg.Wait()
	return perSeed
}

// enrichUnion enriches each distinct title once and copies the result
// back into every per-seed list that contains it.
func (e *Engine) enrichUnion(ctx context.Context, user *userconfig.UserConfig, perSeed [][]Candidate, st *State) {
	union := make(map[int]*Candidate)
	for _, candidates := range perSeed {
		for i := range candidates {
			if _, ok := union[candidates[i].TMDBID]; !ok {
				c := candidates[i]
				union[c.TMDBID] = &c
			}
		}
	}
	if len(union) == 0 {
		return
	}

	flat := make([]*Candidate, 0, len(union))
	for _, cand := range union {
		flat = append(flat, cand)
	}
	e.enrich.Enrich(ctx, user, flat, st)

	for _, candidates := range perSeed {
		for i := range candidates {
			if enriched, ok := union[candidates[i].TMDBID]; ok {
				candidates[i] = *enriched
			}
		}
	}
}

// popularRow builds the cold-start fallback row from the popular feed.
func (e *Engine) popularRow(ctx context.Context, user *userconfig.UserConfig, ctype string, mt tmdb.MediaType, opts ScoreOptions, st *State) (CatalogRow, bool) {
	candidates := e.disc.PopularCandidates(ctx, user.TMDBAPIKey, mt)
	if len(candidates) == 0 {
		return CatalogRow{}, false
	}

	flat := make([]*Candidate, len(candidates))
	for i := range candidates {
		flat[i] = &candidates[i]
	}
	e.enrich.Enrich(ctx, user, flat, st)

	// Popularity is not personal: no frequency signal, no minimum-rating
	// gate beyond the user's own threshold.
	items := BuildRow(candidates, nil, opts)
	if len(items) == 0 {
		return CatalogRow{}, false
	}

	label := "movies"
	if ctype == "series" {
		label = "series"
	}
	return CatalogRow{
		RowID: fmt.Sprintf("suggestarr-%s-popular", ctype),
		Title: "Popular " + label,
		Items: previews(items),
	}, true
}

func rowTitle(seed SeedItem) string {
	if seed.Source == SourceLoved {
		return "Because you loved " + seed.Title
	}
	return "Because you watched " + seed.Title
}

func previews(items []ScoredCandidate) []MetaPreview {
	out := make([]MetaPreview, len(items))
	for i, item := range items {
		out[i] = item.Preview()
	}
	return out
}
