// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package stremio talks to the Stremio API to fetch a user's library
// collection, the seed source for the recommendation pipeline.
package stremio

import "time"

// LibraryItem is one entry in a user's Stremio library collection. Only
// the fields the pipeline reads are mapped.
type LibraryItem struct {
	// ID is the content identifier, an IMDb id ("tt...") for catalog
	// content.
	ID   string `json:"_id"`
	Name string `json:"name"`

	// Type is "movie" or "series".
	Type string `json:"type"`

	// Removed marks entries deleted from the library but retained by the
	// datastore.
	Removed bool `json:"removed"`

	// Temp marks entries Stremio added implicitly (e.g. on first play)
	// rather than by an explicit add-to-library action.
	Temp bool `json:"temp"`

	// MTime is the last modification time of the entry.
	MTime time.Time `json:"_mtime"`

	State WatchState `json:"state"`
}

// WatchState carries per-item playback bookkeeping.
type WatchState struct {
	TimesWatched   int       `json:"timesWatched"`
	FlaggedWatched int       `json:"flaggedWatched"`
	LastWatched    time.Time `json:"lastWatched"`
}

// Loved reports whether the user added this item to the library
// explicitly. Removed entries are never loved.
func (i LibraryItem) Loved() bool {
	return !i.Removed && !i.Temp
}

// Watched reports whether the user watched or flagged this item.
func (i LibraryItem) Watched() bool {
	return i.State.TimesWatched > 0 || i.State.FlaggedWatched > 0
}

// Recency is the timestamp used to order seeds: the last watch when
// known, otherwise the library modification time.
func (i LibraryItem) Recency() time.Time {
	if !i.State.LastWatched.IsZero() {
		return i.State.LastWatched
	}
	return i.MTime
}
