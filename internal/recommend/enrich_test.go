// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/suggestarr/suggestarr/internal/mdblist"
	"github.com/suggestarr/suggestarr/internal/tmdb"
)

type fakeDetails struct {
	err   error
	calls atomic.Int32
}

func (f *fakeDetails) Details(_ context.Context, _ string, mt tmdb.MediaType, id int) (*tmdb.Details, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.Details{
		Title:       tmdb.Title{ID: id, Title: fmt.Sprintf("Title %d", id)},
		ExternalIDs: tmdb.ExternalIDs{IMDBID: fmt.Sprintf("tt%07d", id)},
	}, nil
}

type fakeRatings struct {
	rating *mdblist.Rating
	err    error
	calls  atomic.Int32
}

func (f *fakeRatings) GetByIMDB(context.Context, string, string) (*mdblist.Rating, error) {
	f.calls.Add(1)
	return f.rating, f.err
}

func TestEnrichResolvesCanonicalAndSecondary(t *testing.T) {
	details := &fakeDetails{}
	ratings := &fakeRatings{rating: &mdblist.Rating{Score: 8.4}}
	e := NewEnricher(details, ratings, newTestCache(t), 4)

	user := testUser()
	user.MDBListAPIKey = "mdb-key"

	candidates := []*Candidate{
		{TMDBID: 100, MediaType: tmdb.Movie, RawRating: 7.0},
		{TMDBID: 200, MediaType: tmdb.Movie, RawRating: 6.5},
	}
	st := &State{}
	e.Enrich(context.Background(), user, candidates, st)

	for _, cand := range candidates {
		if cand.CanonicalID == "" {
			t.Errorf("candidate %d missing canonical id", cand.TMDBID)
		}
		if !cand.HasSecondary || cand.SecondaryRating != 8.4 {
			t.Errorf("candidate %d secondary = (%v, %v)", cand.TMDBID, cand.HasSecondary, cand.SecondaryRating)
		}
	}
	if st.Degraded() {
		t.Error("healthy enrichment should not degrade")
	}
}

func TestEnrichWithoutMDBListKeySkipsSecondary(t *testing.T) {
	details := &fakeDetails{}
	ratings := &fakeRatings{rating: &mdblist.Rating{Score: 9.0}}
	e := NewEnricher(details, ratings, newTestCache(t), 4)

	candidates := []*Candidate{{TMDBID: 100, MediaType: tmdb.Movie, RawRating: 7.0}}
	st := &State{}
	e.Enrich(context.Background(), testUser(), candidates, st)

	if ratings.calls.Load() != 0 {
		t.Error("no rating lookups expected without an API key")
	}
	if candidates[0].HasSecondary {
		t.Error("secondary rating set without a key")
	}
	if candidates[0].CanonicalID == "" {
		t.Error("canonical resolution should still run")
	}
}

func TestEnrichRatingFailureDegradesAndKeepsPrimary(t *testing.T) {
	details := &fakeDetails{}
	ratings := &fakeRatings{err: errors.New("mdblist down")}
	// Serial enrichment so the degradation of the first lookup is
	// visible to every later candidate.
	e := NewEnricher(details, ratings, newTestCache(t), 1)

	user := testUser()
	user.MDBListAPIKey = "mdb-key"

	candidates := []*Candidate{
		{TMDBID: 100, MediaType: tmdb.Movie, RawRating: 7.5},
		{TMDBID: 200, MediaType: tmdb.Movie, RawRating: 8.0},
		{TMDBID: 300, MediaType: tmdb.Movie, RawRating: 6.8},
	}
	st := &State{}
	e.Enrich(context.Background(), user, candidates, st)

	if !st.Degraded() {
		t.Fatal("exhausted rating lookup must degrade the request")
	}
	if n := ratings.calls.Load(); n != 1 {
		t.Errorf("rating lookups = %d, want 1 (remainder skipped after degradation)", n)
	}
	for _, cand := range candidates {
		if cand.HasSecondary {
			t.Errorf("candidate %d has a secondary rating in degraded mode", cand.TMDBID)
		}
		if cand.CanonicalID == "" {
			t.Errorf("candidate %d lost its canonical id", cand.TMDBID)
		}
		if cand.NormalizedRating() != cand.RawRating {
			t.Errorf("candidate %d should fall back to its primary rating", cand.TMDBID)
		}
	}
}

func TestEnrichDetailsFailureLeavesCandidateUngated(t *testing.T) {
	details := &fakeDetails{err: errors.New("details down")}
	ratings := &fakeRatings{}
	e := NewEnricher(details, ratings, newTestCache(t), 4)

	candidates := []*Candidate{{TMDBID: 100, MediaType: tmdb.Movie, RawRating: 7.0}}
	st := &State{}
	e.Enrich(context.Background(), testUser(), candidates, st)

	if candidates[0].CanonicalID != "" {
		t.Error("failed details lookup should leave canonical id empty")
	}
	if ratings.calls.Load() != 0 {
		t.Error("rating lookup should not run without a canonical id")
	}
	if st.Degraded() {
		t.Error("details failure is not rating degradation")
	}
}

func TestEnrichCachesRatingsAcrossRequests(t *testing.T) {
	details := &fakeDetails{}
	ratings := &fakeRatings{rating: &mdblist.Rating{Score: 7.9}}
	mgr := newTestCache(t)
	e := NewEnricher(details, ratings, mgr, 4)

	user := testUser()
	user.MDBListAPIKey = "mdb-key"

	first := []*Candidate{{TMDBID: 100, MediaType: tmdb.Movie}}
	e.Enrich(context.Background(), user, first, &State{})

	second := []*Candidate{{TMDBID: 100, MediaType: tmdb.Movie}}
	e.Enrich(context.Background(), user, second, &State{})

	if n := ratings.calls.Load(); n != 1 {
		t.Errorf("rating lookups = %d, want 1 (cached across requests)", n)
	}
	if !second[0].HasSecondary || second[0].SecondaryRating != 7.9 {
		t.Errorf("cached rating not applied: %+v", second[0])
	}
}

func TestStateIsPerRequest(t *testing.T) {
	st1 := &State{}
	st1.Degrade()

	st2 := &State{}
	if st2.Degraded() {
		t.Error("a fresh State must not inherit degradation")
	}
	if !st1.Degraded() {
		t.Error("degraded State lost its flag")
	}
}
