// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package recommend

import (
	"sort"

	"github.com/suggestarr/suggestarr/internal/metrics"
)

// Weights balance how much cross-seed frequency and rating contribute to
// the composite score.
type Weights struct {
	Frequency float64
	Rating    float64
}

// ScoreOptions parameterize row construction.
type ScoreOptions struct {
	Weights   Weights
	MinRating float64
	MaxItems  int

	// Watched holds canonical ids the user has already seen; they never
	// appear in a row.
	Watched map[string]bool
}

// FrequencyMap sums, per canonical id, the weights of the distinct seeds
// whose discovery produced it. Computed over the union of all seeds so a
// candidate surfaced by several seeds ranks higher in every row.
func FrequencyMap(seeds []SeedItem, perSeed [][]Candidate) map[string]float64 {
	freq := make(map[string]float64)
	for i, candidates := range perSeed {
		if i >= len(seeds) {
			break
		}
		seen := make(map[string]bool, len(candidates))
		for _, cand := range candidates {
			if cand.CanonicalID == "" || seen[cand.CanonicalID] {
				continue
			}
			seen[cand.CanonicalID] = true
			freq[cand.CanonicalID] += seeds[i].Weight
		}
	}
	return freq
}

// BuildRow gates, deduplicates, scores, orders, and truncates one seed's
// candidates. The sort is a total order over the candidate fields, so
// identical input always yields byte-identical output.
func BuildRow(candidates []Candidate, freq map[string]float64, opts ScoreOptions) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	inRow := make(map[string]bool, len(candidates))

	for _, cand := range candidates {
		if cand.CanonicalID == "" {
			metrics.CandidatesDropped.WithLabelValues("missing_canonical_id").Inc()
			continue
		}
		if opts.Watched[cand.CanonicalID] {
			metrics.CandidatesDropped.WithLabelValues("watched").Inc()
			continue
		}
		rating := cand.NormalizedRating()
		if rating < opts.MinRating {
			metrics.CandidatesDropped.WithLabelValues("below_min_rating").Inc()
			continue
		}
		if inRow[cand.CanonicalID] {
			continue
		}
		inRow[cand.CanonicalID] = true

		scored = append(scored, ScoredCandidate{
			Candidate:      cand,
			Frequency:      freq[cand.CanonicalID],
			CompositeScore: freq[cand.CanonicalID]*opts.Weights.Frequency + rating*opts.Weights.Rating,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.CanonicalID < b.CanonicalID
	})

	if opts.MaxItems > 0 && len(scored) > opts.MaxItems {
		scored = scored[:opts.MaxItems]
	}
	return scored
}
