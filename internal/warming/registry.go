// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package warming keeps catalogs of recently active users fresh: a
// bounded registry remembers who asked lately, and a supervised loop
// refreshes their cache entries before they expire.
package warming

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/suggestarr/suggestarr/internal/cache"
	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

const registryStoreKey = "warming:registry"

// Registry is a TTL'd LRU of active users. Least recently seen users are
// evicted at capacity, and entries expire after the inactivity TTL. The
// set survives restarts through the cache store with credentials sealed
// at rest.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently seen
	capacity int
	ttl      time.Duration

	store  cache.Store
	sealer *userconfig.Sealer
	log    zerolog.Logger
}

type registryEntry struct {
	fingerprint string
	user        userconfig.UserConfig
	lastSeen    time.Time
}

// persistedEntry is the at-rest form; the whole user config is sealed so
// no plaintext credential reaches the store.
type persistedEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Sealed      string    `json:"sealed"`
	LastSeen    time.Time `json:"last_seen"`
}

// NewRegistry builds a registry and reloads any persisted user set.
func NewRegistry(store cache.Store, sealer *userconfig.Sealer, capacity int, ttl time.Duration) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	r := &Registry{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		store:    store,
		sealer:   sealer,
		log:      logging.With().Str("component", "warming").Logger(),
	}
	r.load()
	return r
}

// Touch records user activity, inserting or refreshing the entry and
// evicting the least recently seen user at capacity.
func (r *Registry) Touch(user *userconfig.UserConfig) {
	fp := user.Fingerprint()

	r.mu.Lock()
	if elem, ok := r.entries[fp]; ok {
		entry := elem.Value.(*registryEntry)
		entry.user = *user
		entry.lastSeen = time.Now()
		r.order.MoveToFront(elem)
	} else {
		for r.order.Len() >= r.capacity {
			r.evictOldestLocked()
		}
		elem := r.order.PushFront(&registryEntry{
			fingerprint: fp,
			user:        *user,
			lastSeen:    time.Now(),
		})
		r.entries[fp] = elem
	}
	r.mu.Unlock()

	r.persist()
}

// Active returns the configs of all non-expired users, most recently
// seen first. Expired entries are pruned as a side effect.
func (r *Registry) Active() []*userconfig.UserConfig {
	r.mu.Lock()
	cutoff := time.Now().Add(-r.ttl)
	var users []*userconfig.UserConfig

	for elem := r.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*registryEntry)
		if entry.lastSeen.Before(cutoff) {
			r.order.Remove(elem)
			delete(r.entries, entry.fingerprint)
		} else {
			u := entry.user
			users = append(users, &u)
		}
		elem = next
	}
	r.mu.Unlock()
	return users
}

// Len reports the current registry size.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

func (r *Registry) evictOldestLocked() {
	elem := r.order.Back()
	if elem == nil {
		return
	}
	entry := r.order.Remove(elem).(*registryEntry)
	delete(r.entries, entry.fingerprint)
}

// persist writes the sealed user set to the store. Failures only cost
// warm-start coverage, so they are logged and dropped.
func (r *Registry) persist() {
	r.mu.Lock()
	persisted := make([]persistedEntry, 0, r.order.Len())
	for elem := r.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*registryEntry)
		raw, err := json.Marshal(entry.user)
		if err != nil {
			continue
		}
		sealed, err := r.sealer.Seal(string(raw))
		if err != nil {
			continue
		}
		persisted = append(persisted, persistedEntry{
			Fingerprint: entry.fingerprint,
			Sealed:      sealed,
			LastSeen:    entry.lastSeen,
		})
	}
	r.mu.Unlock()

	raw, err := json.Marshal(persisted)
	if err != nil {
		r.log.Warn().Err(err).Msg("cannot marshal warming registry")
		return
	}
	if err := r.store.Set(context.Background(), registryStoreKey, raw, r.ttl); err != nil {
		r.log.Warn().Err(err).Msg("cannot persist warming registry")
	}
}

// load restores the persisted user set. Entries that no longer unseal
// (salt rotation) are skipped.
func (r *Registry) load() {
	raw, err := r.store.Get(context.Background(), registryStoreKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			r.log.Warn().Err(err).Msg("cannot read warming registry")
		}
		return
	}

	var persisted []persistedEntry
	if err := json.Unmarshal(raw, &persisted); err != nil {
		r.log.Warn().Err(err).Msg("warming registry corrupt, starting empty")
		return
	}

	cutoff := time.Now().Add(-r.ttl)
	restored := 0
	// Oldest first so PushFront leaves the most recent at the front.
	for i := len(persisted) - 1; i >= 0; i-- {
		p := persisted[i]
		if p.LastSeen.Before(cutoff) || restored >= r.capacity {
			continue
		}
		plain, err := r.sealer.Open(p.Sealed)
		if err != nil {
			continue
		}
		var user userconfig.UserConfig
		if err := json.Unmarshal([]byte(plain), &user); err != nil {
			continue
		}
		elem := r.order.PushFront(&registryEntry{
			fingerprint: p.Fingerprint,
			user:        user,
			lastSeen:    p.LastSeen,
		})
		r.entries[p.Fingerprint] = elem
		restored++
	}
	if restored > 0 {
		r.log.Info().Int("users", restored).Msg("warming registry restored")
	}
}
