// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/suggestarr/suggestarr/internal/tmdb"
)

type fakeDiscovery struct {
	findResult   *tmdb.FindResult
	findErr      error
	keywords     []tmdb.Keyword
	keywordsErr  error
	discovered   []tmdb.Title
	discoverErr  error
	similar      []tmdb.Title
	similarErr   error
	popular      []tmdb.Title
	popularErr   error
	similarCalls int
	discoverIDs  []int
}

func (f *fakeDiscovery) FindByIMDB(context.Context, string, string) (*tmdb.FindResult, error) {
	return f.findResult, f.findErr
}

func (f *fakeDiscovery) Keywords(context.Context, string, tmdb.MediaType, int) ([]tmdb.Keyword, error) {
	return f.keywords, f.keywordsErr
}

func (f *fakeDiscovery) DiscoverByKeywords(_ context.Context, _ string, _ tmdb.MediaType, ids []int, _ tmdb.DiscoverFilters) ([]tmdb.Title, error) {
	f.discoverIDs = ids
	return f.discovered, f.discoverErr
}

func (f *fakeDiscovery) Recommendations(context.Context, string, tmdb.MediaType, int) ([]tmdb.Title, error) {
	f.similarCalls++
	return f.similar, f.similarErr
}

func (f *fakeDiscovery) Popular(context.Context, string, tmdb.MediaType) ([]tmdb.Title, error) {
	return f.popular, f.popularErr
}

func movieSeed(id string) SeedItem {
	return SeedItem{ExternalID: id, MediaType: tmdb.Movie, Title: "Seed", Source: SourceLoved, Weight: 2}
}

func foundMovie(id int) *tmdb.FindResult {
	return &tmdb.FindResult{MovieResults: []tmdb.Title{{ID: id}}}
}

func testFilters() tmdb.DiscoverFilters {
	return tmdb.DiscoverFilters{VoteCountMin: 50, VoteCountMax: 5000, VoteAverageMin: 7.0, SortBy: "vote_average.desc"}
}

func TestDiscoverSeedKeywordPath(t *testing.T) {
	client := &fakeDiscovery{
		findResult: foundMovie(603),
		keywords:   []tmdb.Keyword{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}, {ID: 6}, {ID: 7}},
		discovered: []tmdb.Title{
			{ID: 100, Title: "Similar One", VoteAverage: 7.8, VoteCount: 400},
			{ID: 603, Title: "The Seed Itself"},
		},
	}
	d := NewDiscoverer(client, newTestCache(t), testFilters())

	candidates := d.DiscoverSeed(context.Background(), "", movieSeed("tt0133093"))

	if len(candidates) != 1 || candidates[0].TMDBID != 100 {
		t.Errorf("candidates = %+v, want only the non-seed title", candidates)
	}
	if client.similarCalls != 0 {
		t.Error("keyword path should not touch the similar-titles endpoint")
	}
	if len(client.discoverIDs) != maxKeywordsPerSeed {
		t.Errorf("discover used %d keywords, want capped at %d", len(client.discoverIDs), maxKeywordsPerSeed)
	}
}

func TestDiscoverSeedEmptyKeywordsFallsBackOnce(t *testing.T) {
	client := &fakeDiscovery{
		findResult: foundMovie(27205),
		keywords:   nil,
		similar:    []tmdb.Title{{ID: 200, Title: "Fallback Pick", VoteAverage: 7.2, VoteCount: 900}},
	}
	d := NewDiscoverer(client, newTestCache(t), testFilters())

	candidates := d.DiscoverSeed(context.Background(), "", movieSeed("tt1375666"))

	if client.similarCalls != 1 {
		t.Errorf("fallback fired %d times, want exactly 1", client.similarCalls)
	}
	if len(candidates) != 1 || candidates[0].Title != "Fallback Pick" {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestDiscoverSeedKeywordLookupFailureFallsBack(t *testing.T) {
	client := &fakeDiscovery{
		findResult:  foundMovie(603),
		keywordsErr: errors.New("keywords unavailable"),
		similar:     []tmdb.Title{{ID: 300, Title: "Via Fallback"}},
	}
	d := NewDiscoverer(client, newTestCache(t), testFilters())

	candidates := d.DiscoverSeed(context.Background(), "", movieSeed("tt0133093"))
	if client.similarCalls != 1 {
		t.Errorf("fallback fired %d times, want 1", client.similarCalls)
	}
	if len(candidates) != 1 {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestDiscoverSeedTotalFailureYieldsEmpty(t *testing.T) {
	client := &fakeDiscovery{findErr: errors.New("resolver down")}
	d := NewDiscoverer(client, newTestCache(t), testFilters())

	if candidates := d.DiscoverSeed(context.Background(), "", movieSeed("tt1")); len(candidates) != 0 {
		t.Errorf("candidates = %+v, want empty on total failure", candidates)
	}
}

func TestDiscoverSeedUnknownTitleYieldsEmpty(t *testing.T) {
	client := &fakeDiscovery{findResult: &tmdb.FindResult{}}
	d := NewDiscoverer(client, newTestCache(t), testFilters())

	candidates := d.DiscoverSeed(context.Background(), "", movieSeed("tt999"))
	if len(candidates) != 0 {
		t.Errorf("candidates = %+v, want empty for unknown id", candidates)
	}
	if client.similarCalls != 0 {
		t.Error("unknown seed must not reach the fallback endpoint")
	}
}

func TestDiscoverSeedResultsCachedAcrossCalls(t *testing.T) {
	client := &fakeDiscovery{
		findResult: foundMovie(603),
		keywords:   []tmdb.Keyword{{ID: 1}},
		discovered: []tmdb.Title{{ID: 100, Title: "Cached"}},
	}
	d := NewDiscoverer(client, newTestCache(t), testFilters())
	seed := movieSeed("tt0133093")

	d.DiscoverSeed(context.Background(), "", seed)
	client.discoverErr = errors.New("upstream gone")
	candidates := d.DiscoverSeed(context.Background(), "", seed)

	if len(candidates) != 1 || candidates[0].Title != "Cached" {
		t.Errorf("second call should come from cache, got %+v", candidates)
	}
}

func TestPopularCandidates(t *testing.T) {
	client := &fakeDiscovery{
		popular: []tmdb.Title{{ID: 1, Title: "Big Hit", VoteAverage: 7.7, VoteCount: 12000}},
	}
	d := NewDiscoverer(client, newTestCache(t), testFilters())

	candidates := d.PopularCandidates(context.Background(), "", tmdb.Movie)
	if len(candidates) != 1 || candidates[0].Title != "Big Hit" {
		t.Errorf("candidates = %+v", candidates)
	}

	client.popularErr = errors.New("down")
	client.popular = nil
	if again := d.PopularCandidates(context.Background(), "", tmdb.Movie); len(again) != 1 {
		t.Errorf("cached popular feed should survive upstream failure, got %+v", again)
	}
}
