// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/suggestarr/suggestarr/internal/cache"
	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/stremio"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

// LibraryClient is the slice of the Stremio client the collector needs.
type LibraryClient interface {
	GetLibrary(ctx context.Context, authKey string) ([]stremio.LibraryItem, error)
}

// SeedCollector turns a user's library into a bounded, ordered seed set.
type SeedCollector struct {
	library  LibraryClient
	cache    *cache.Manager
	maxSeeds int
	log      zerolog.Logger
}

// NewSeedCollector builds a collector; maxSeeds bounds the seed set.
func NewSeedCollector(library LibraryClient, mgr *cache.Manager, maxSeeds int) *SeedCollector {
	return &SeedCollector{
		library:  library,
		cache:    mgr,
		maxSeeds: maxSeeds,
		log:      logging.With().Str("component", "seeds").Logger(),
	}
}

// Collect returns the ordered seed set for one content type plus the set
// of canonical ids the user has already watched (any type). Upstream
// failure is never an error: a stale library snapshot is used when the
// cache has one, otherwise both results are empty.
func (c *SeedCollector) Collect(ctx context.Context, user *userconfig.UserConfig, ctype string) ([]SeedItem, map[string]bool) {
	key := cache.Key(cache.ClassLibrary, user.Fingerprint())
	items, src, err := cache.Fetch(ctx, c.cache, cache.ClassLibrary, key,
		func(ctx context.Context) ([]stremio.LibraryItem, cache.Meta, error) {
			lib, err := c.library.GetLibrary(ctx, user.AuthKey)
			return lib, cache.Meta{}, err
		})
	if err != nil {
		c.log.Warn().Err(err).Str("user", user.Fingerprint()).Msg("library unavailable, proceeding without seeds")
		return nil, map[string]bool{}
	}
	c.log.Debug().Int("items", len(items)).Stringer("source", src).Msg("library snapshot loaded")

	return c.extract(items, user, ctype), watchedSet(items)
}

// extract filters, deduplicates, weights, orders, and truncates.
func (c *SeedCollector) extract(items []stremio.LibraryItem, user *userconfig.UserConfig, ctype string) []SeedItem {
	mt, ok := mediaType(ctype)
	if !ok {
		return nil
	}

	useLoved := user.UseLovedItems == nil || *user.UseLovedItems

	byID := make(map[string]SeedItem)
	for _, item := range items {
		if item.Type != ctype || !strings.HasPrefix(item.ID, "tt") {
			continue
		}

		var seed SeedItem
		switch {
		case useLoved && item.Loved():
			seed = SeedItem{Source: SourceLoved, Weight: WeightLoved}
		case item.Watched():
			seed = SeedItem{Source: SourceWatched, Weight: WeightWatched}
		default:
			continue
		}
		seed.ExternalID = item.ID
		seed.MediaType = mt
		seed.Title = item.Name
		seed.Recency = item.Recency()

		// Loved wins over watched for the same item.
		if existing, ok := byID[item.ID]; ok && existing.Weight >= seed.Weight {
			continue
		}
		byID[item.ID] = seed
	}

	seeds := make([]SeedItem, 0, len(byID))
	for _, seed := range byID {
		seeds = append(seeds, seed)
	}
	sort.Slice(seeds, func(i, j int) bool {
		if seeds[i].Weight != seeds[j].Weight {
			return seeds[i].Weight > seeds[j].Weight
		}
		if !seeds[i].Recency.Equal(seeds[j].Recency) {
			return seeds[i].Recency.After(seeds[j].Recency)
		}
		return seeds[i].ExternalID < seeds[j].ExternalID
	})

	if len(seeds) > c.maxSeeds {
		seeds = seeds[:c.maxSeeds]
	}
	return seeds
}

// watchedSet collects the canonical ids of everything the user has
// watched, across both content types, to keep seen items out of rows.
func watchedSet(items []stremio.LibraryItem) map[string]bool {
	watched := make(map[string]bool)
	for _, item := range items {
		if item.Watched() && strings.HasPrefix(item.ID, "tt") {
			watched[item.ID] = true
		}
	}
	return watched
}
