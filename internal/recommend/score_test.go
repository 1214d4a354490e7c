// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"reflect"
	"testing"

	"github.com/suggestarr/suggestarr/internal/tmdb"
)

func cand(canonical, title string, rating float64, votes int) Candidate {
	return Candidate{
		TMDBID:      votes, // arbitrary but distinct enough for tests
		MediaType:   tmdb.Movie,
		Title:       title,
		CanonicalID: canonical,
		RawRating:   rating,
		VoteCount:   votes,
	}
}

func defaultOpts() ScoreOptions {
	return ScoreOptions{
		Weights:   Weights{Frequency: 0.6, Rating: 0.4},
		MinRating: 6.0,
		MaxItems:  20,
	}
}

func TestBuildRowDeterministic(t *testing.T) {
	candidates := []Candidate{
		cand("tt3", "Gamma", 7.1, 300),
		cand("tt1", "Alpha", 8.0, 100),
		cand("tt2", "Beta", 8.0, 100),
	}
	freq := map[string]float64{"tt1": 2, "tt2": 2, "tt3": 1}

	first := BuildRow(candidates, freq, defaultOpts())
	for i := 0; i < 10; i++ {
		again := BuildRow(candidates, freq, defaultOpts())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}

	// Equal composite and votes: Alpha before Beta by title.
	if first[0].Title != "Alpha" || first[1].Title != "Beta" {
		t.Errorf("tie-break order wrong: %q, %q", first[0].Title, first[1].Title)
	}
}

func TestBuildRowGatesMissingCanonicalID(t *testing.T) {
	candidates := []Candidate{
		cand("tt1", "Kept", 8.0, 100),
		cand("", "Dropped", 9.9, 9999),
	}

	row := BuildRow(candidates, nil, defaultOpts())
	if len(row) != 1 || row[0].Title != "Kept" {
		t.Errorf("row = %+v, want only the candidate with a canonical id", row)
	}
}

func TestBuildRowMinRatingBoundary(t *testing.T) {
	candidates := []Candidate{
		cand("tt1", "Exactly", 6.0, 100),
		cand("tt2", "Below", 5.9, 100),
		cand("tt3", "Above", 6.1, 100),
	}

	row := BuildRow(candidates, nil, defaultOpts())
	got := make(map[string]bool)
	for _, item := range row {
		got[item.Title] = true
	}
	if !got["Exactly"] {
		t.Error("candidate exactly at the minimum rating must be retained")
	}
	if got["Below"] {
		t.Error("candidate below the minimum rating must be dropped")
	}
	if !got["Above"] {
		t.Error("candidate above the minimum rating must be retained")
	}
}

func TestBuildRowUniquePerCanonicalID(t *testing.T) {
	candidates := []Candidate{
		cand("tt1", "First", 8.0, 100),
		cand("tt1", "Duplicate", 8.0, 100),
		cand("tt2", "Other", 7.0, 50),
	}

	row := BuildRow(candidates, nil, defaultOpts())
	seen := make(map[string]int)
	for _, item := range row {
		seen[item.CanonicalID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("canonical id %s appears %d times in one row", id, n)
		}
	}
	if len(row) != 2 {
		t.Errorf("row length = %d, want 2", len(row))
	}
}

func TestBuildRowExcludesWatched(t *testing.T) {
	opts := defaultOpts()
	opts.Watched = map[string]bool{"tt1": true}

	row := BuildRow([]Candidate{
		cand("tt1", "Seen", 9.0, 1000),
		cand("tt2", "Unseen", 7.0, 100),
	}, nil, opts)

	if len(row) != 1 || row[0].CanonicalID != "tt2" {
		t.Errorf("row = %+v, want only the unseen candidate", row)
	}
}

func TestBuildRowTruncates(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 50; i++ {
		candidates = append(candidates, cand(
			"tt"+string(rune('a'+i%26))+string(rune('a'+i/26)), "Title", 8.0, i))
	}
	opts := defaultOpts()
	opts.MaxItems = 20

	if row := BuildRow(candidates, nil, opts); len(row) != 20 {
		t.Errorf("row length = %d, want 20", len(row))
	}
}

// The fixed ranking scenario: one loved seed, candidate A (7.5, 1000
// votes) and B (9.5, 10 votes), minimum rating 7.0. With scoring pinned
// to frequency only, both composites are equal and the vote-count
// tie-break must put A first.
func TestRankingScenarioVotesBeatRawRating(t *testing.T) {
	seeds := []SeedItem{{ExternalID: "tt0133093", MediaType: tmdb.Movie, Source: SourceLoved, Weight: 2}}
	perSeed := [][]Candidate{{
		cand("ttA", "A", 7.5, 1000),
		cand("ttB", "B", 9.5, 10),
	}}

	freq := FrequencyMap(seeds, perSeed)
	row := BuildRow(perSeed[0], freq, ScoreOptions{
		Weights:   Weights{Frequency: 1.0, Rating: 0.0},
		MinRating: 7.0,
		MaxItems:  20,
	})

	if len(row) != 2 {
		t.Fatalf("both candidates clear the rating floor, got %d", len(row))
	}
	if row[0].CanonicalID != "ttA" || row[1].CanonicalID != "ttB" {
		t.Errorf("order = [%s, %s], want [ttA, ttB]", row[0].CanonicalID, row[1].CanonicalID)
	}
}

func TestFrequencyMapSumsDistinctSeedWeights(t *testing.T) {
	seeds := []SeedItem{
		{ExternalID: "s1", Weight: 2},
		{ExternalID: "s2", Weight: 1},
	}
	perSeed := [][]Candidate{
		{cand("tt1", "Both", 8, 1), cand("tt1", "BothAgain", 8, 1), cand("tt2", "OnlyFirst", 8, 1)},
		{cand("tt1", "Both", 8, 1), cand("tt3", "OnlySecond", 8, 1)},
	}

	freq := FrequencyMap(seeds, perSeed)
	if freq["tt1"] != 3 {
		t.Errorf("tt1 frequency = %v, want 3 (2+1, duplicate within a seed ignored)", freq["tt1"])
	}
	if freq["tt2"] != 2 || freq["tt3"] != 1 {
		t.Errorf("tt2 = %v (want 2), tt3 = %v (want 1)", freq["tt2"], freq["tt3"])
	}
}

// Degraded enrichment can only remove the secondary rating, never a
// candidate: a primary-only row is never smaller than the same row
// without enrichment.
func TestDegradedRowNotSmallerThanUnenriched(t *testing.T) {
	base := []Candidate{
		cand("tt1", "One", 7.5, 100),
		cand("tt2", "Two", 8.5, 200),
	}

	enriched := make([]Candidate, len(base))
	copy(enriched, base)
	enriched[0].SecondaryRating = 9.0
	enriched[0].HasSecondary = true

	unenriched := BuildRow(base, nil, defaultOpts())
	degraded := BuildRow(enriched, nil, defaultOpts()) // secondary present on one only

	if len(degraded) < len(unenriched) {
		t.Errorf("degraded row has %d items, unenriched has %d", len(degraded), len(unenriched))
	}
}
