// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package warming

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

// CatalogWarmer is the slice of the recommendation engine the warmer
// drives: refresh a user's catalogs due within the horizon.
type CatalogWarmer interface {
	WarmUser(ctx context.Context, user *userconfig.UserConfig, horizon time.Duration) int
}

// Warmer periodically refreshes catalogs for registered users before
// their cache entries expire. It implements suture.Service.
type Warmer struct {
	registry *Registry
	engine   CatalogWarmer
	interval time.Duration
	horizon  time.Duration
	log      zerolog.Logger
}

// NewWarmer builds a Warmer that cycles every interval and refreshes
// entries losing freshness within horizon.
func NewWarmer(registry *Registry, engine CatalogWarmer, interval, horizon time.Duration) *Warmer {
	return &Warmer{
		registry: registry,
		engine:   engine,
		interval: interval,
		horizon:  horizon,
		log:      logging.With().Str("component", "warmer").Logger(),
	}
}

// Serve runs warming cycles until the context is canceled. The first
// cycle runs immediately so a restart does not wait a full interval.
func (w *Warmer) Serve(ctx context.Context) error {
	w.cycle(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *Warmer) String() string { return "cache-warmer" }

func (w *Warmer) cycle(ctx context.Context) {
	start := time.Now()
	users := w.registry.Active()
	metrics.WarmingCycles.Inc()
	metrics.WarmingActiveUsers.Set(float64(len(users)))

	refreshed := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return
		}
		n := w.engine.WarmUser(ctx, user, w.horizon)
		refreshed += n
		metrics.WarmingRefreshes.Add(float64(n))
	}

	w.log.Info().
		Int("users", len(users)).
		Int("refreshed", refreshed).
		Dur("elapsed", time.Since(start)).
		Msg("warming cycle complete")
}
