// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
)

// Source tells the caller where a fetched value came from.
type Source int

const (
	// SourceFresh means the value was cached and within its freshness TTL.
	SourceFresh Source = iota
	// SourceStale means an expired-but-retained value was served while a
	// background revalidation runs.
	SourceStale
	// SourceComputed means the value was produced by the compute function
	// during this call.
	SourceComputed
	// SourceEmpty means nothing could be served.
	SourceEmpty
)

func (s Source) String() string {
	switch s {
	case SourceFresh:
		return "fresh"
	case SourceStale:
		return "stale"
	case SourceComputed:
		return "computed"
	default:
		return "empty"
	}
}

// Meta is reported by compute functions alongside their result. A
// degraded result was assembled with partial upstream data and is cached
// for a much shorter time so a healthy upstream can replace it soon.
type Meta struct {
	Degraded bool
}

// ComputeFunc produces the value for a cache miss or refresh.
type ComputeFunc[T any] func(ctx context.Context) (T, Meta, error)

// Options configure a Manager. All durations must be positive.
type Options struct {
	// TTLs maps each class to its freshness window.
	TTLs map[Class]time.Duration

	// DegradedTTL replaces the class TTL when a compute reports Degraded.
	DegradedTTL time.Duration

	// StaleGrace is how long past freshness an entry stays servable as
	// stale before the backend drops it.
	StaleGrace time.Duration
}

// Manager layers freshness tracking, stale-while-revalidate, and per-key
// compute locks on top of a Store. Concurrent misses on one key share a
// single compute.
type Manager struct {
	store Store
	opts  Options
	group singleflight.Group
	log   zerolog.Logger
}

// envelope wraps every stored payload with its freshness deadline. The
// backend TTL extends past FreshUntil by the stale grace so stale reads
// remain possible.
type envelope struct {
	Payload    json.RawMessage `json:"payload"`
	FreshUntil time.Time       `json:"fresh_until"`
	Degraded   bool            `json:"degraded,omitempty"`
}

// NewManager validates opts and builds a Manager over store.
func NewManager(store Store, opts Options) (*Manager, error) {
	for _, class := range []Class{ClassLibrary, ClassDiscovery, ClassRatings, ClassCatalog} {
		if opts.TTLs[class] <= 0 {
			return nil, fmt.Errorf("cache: missing TTL for class %s", class)
		}
	}
	if opts.DegradedTTL <= 0 {
		return nil, errors.New("cache: degraded TTL must be positive")
	}
	if opts.StaleGrace <= 0 {
		return nil, errors.New("cache: stale grace must be positive")
	}
	return &Manager{
		store: store,
		opts:  opts,
		log:   logging.With().Str("component", "cache").Logger(),
	}, nil
}

// Fetch implements cache-aside for key: fresh hits return immediately,
// stale hits are served while one background revalidation runs, and
// misses compute under a per-key lock so concurrent callers share a
// single upstream call. Store read errors are treated as misses. A
// compute failure with nothing cached returns the error and SourceEmpty.
func Fetch[T any](ctx context.Context, m *Manager, class Class, key string, compute ComputeFunc[T]) (T, Source, error) {
	var zero T

	env, found := m.load(class, key)
	if found {
		var value T
		if err := json.Unmarshal(env.Payload, &value); err != nil {
			m.log.Warn().Err(err).Str("class", class.String()).Msg("discarding undecodable cache entry")
		} else if time.Now().Before(env.FreshUntil) {
			metrics.CacheHits.WithLabelValues(class.String()).Inc()
			return value, SourceFresh, nil
		} else {
			metrics.CacheStaleServed.WithLabelValues(class.String()).Inc()
			m.revalidate(ctx, class, key, func(ctx context.Context) (any, Meta, error) {
				return compute(ctx)
			})
			return value, SourceStale, nil
		}
	}

	metrics.CacheMisses.WithLabelValues(class.String()).Inc()

	value, err, shared := m.group.Do(key, func() (any, error) {
		v, meta, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.persist(ctx, class, key, v, meta)
		return v, nil
	})
	if shared {
		metrics.CacheComputeShared.WithLabelValues(class.String()).Inc()
	}
	if err != nil {
		metrics.CacheComputeFailures.WithLabelValues(class.String()).Inc()
		return zero, SourceEmpty, fmt.Errorf("compute %s: %w", class, err)
	}
	return value.(T), SourceComputed, nil
}

// Refresh unconditionally recomputes and stores the value for key. Used
// by the background warmer; request paths should call Fetch.
func Refresh[T any](ctx context.Context, m *Manager, class Class, key string, compute ComputeFunc[T]) (T, error) {
	var zero T
	value, err, _ := m.group.Do(key, func() (any, error) {
		v, meta, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.persist(ctx, class, key, v, meta)
		return v, nil
	})
	if err != nil {
		metrics.CacheComputeFailures.WithLabelValues(class.String()).Inc()
		return zero, fmt.Errorf("refresh %s: %w", class, err)
	}
	return value.(T), nil
}

// ShouldRefresh reports whether key is missing, already stale, or will
// lose freshness within the given horizon. The warmer uses this to skip
// entries that are still comfortably fresh.
func (m *Manager) ShouldRefresh(class Class, key string, horizon time.Duration) bool {
	env, found := m.load(class, key)
	if !found {
		return true
	}
	return time.Now().Add(horizon).After(env.FreshUntil)
}

// Invalidate drops key from the store.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

// load reads and decodes the envelope for key. Store errors other than
// ErrNotFound are counted and reported as a miss so the caller recomputes.
func (m *Manager) load(class Class, key string) (*envelope, bool) {
	raw, err := m.store.Get(context.Background(), key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.CacheStoreErrors.Inc()
			m.log.Warn().Err(err).Str("class", class.String()).Msg("cache read failed, treating as miss")
		}
		return nil, false
	}

	env := &envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		metrics.CacheStoreErrors.Inc()
		m.log.Warn().Err(err).Str("class", class.String()).Msg("cache envelope corrupt, treating as miss")
		return nil, false
	}
	return env, true
}

// persist wraps value in an envelope and writes it with a backend TTL of
// freshness plus the stale grace. Write failures degrade to a log line
// and a counter; the caller still gets its computed value.
func (m *Manager) persist(ctx context.Context, class Class, key string, value any, meta Meta) {
	payload, err := json.Marshal(value)
	if err != nil {
		metrics.CacheStoreErrors.Inc()
		m.log.Error().Err(err).Str("class", class.String()).Msg("cannot marshal value for cache")
		return
	}

	freshness := m.opts.TTLs[class]
	if meta.Degraded {
		freshness = m.opts.DegradedTTL
	}

	env := envelope{
		Payload:    payload,
		FreshUntil: time.Now().Add(freshness),
		Degraded:   meta.Degraded,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		metrics.CacheStoreErrors.Inc()
		m.log.Error().Err(err).Str("class", class.String()).Msg("cannot marshal cache envelope")
		return
	}

	if err := m.store.Set(ctx, key, raw, freshness+m.opts.StaleGrace); err != nil {
		metrics.CacheStoreErrors.Inc()
		m.log.Warn().Err(err).Str("class", class.String()).Msg("cache write failed")
	}
}

// revalidate recomputes a stale entry in the background. The singleflight
// group keyed on the cache key guarantees at most one revalidation per
// key at a time; additional stale readers return immediately.
func revalidateKey(key string) string { return "revalidate:" + key }

func (m *Manager) revalidate(ctx context.Context, class Class, key string, compute func(context.Context) (any, Meta, error)) {
	bg := context.WithoutCancel(ctx)
	go m.group.Do(revalidateKey(key), func() (any, error) {
		ctx, cancel := context.WithTimeout(bg, 30*time.Second)
		defer cancel()

		v, meta, err := compute(ctx)
		if err != nil {
			metrics.CacheComputeFailures.WithLabelValues(class.String()).Inc()
			m.log.Debug().Err(err).Str("class", class.String()).Msg("background revalidation failed, stale entry retained")
			return nil, err
		}
		m.persist(ctx, class, key, v, meta)
		return nil, nil
	})
}
