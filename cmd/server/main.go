// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Command server runs the Suggestarr addon: the Stremio HTTP surface
// and the background cache warmer under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/suggestarr/suggestarr/internal/api"
	"github.com/suggestarr/suggestarr/internal/cache"
	"github.com/suggestarr/suggestarr/internal/config"
	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/mdblist"
	"github.com/suggestarr/suggestarr/internal/recommend"
	"github.com/suggestarr/suggestarr/internal/retry"
	"github.com/suggestarr/suggestarr/internal/stremio"
	"github.com/suggestarr/suggestarr/internal/tmdb"
	"github.com/suggestarr/suggestarr/internal/userconfig"
	"github.com/suggestarr/suggestarr/internal/warming"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "suggestarr: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Str("version", version).Msg("starting suggestarr")

	salt := cfg.Token.Salt
	if salt == "" {
		// Random salt: issued tokens die with the process. Fine for
		// trying the addon out, logged loudly for everything else.
		salt = uuid.NewString()
		logging.Warn().Msg("token.salt not set, using a random salt; install tokens will not survive a restart")
	}

	codec, err := userconfig.NewCodec(salt)
	if err != nil {
		return err
	}
	sealer, err := userconfig.NewSealer(salt)
	if err != nil {
		return err
	}

	store := openStore(cfg)
	defer store.Close()

	manager, err := cache.NewManager(store, cache.Options{
		TTLs: map[cache.Class]time.Duration{
			cache.ClassLibrary:   cfg.Cache.TTLLibrary,
			cache.ClassDiscovery: cfg.Cache.TTLDiscovery,
			cache.ClassRatings:   cfg.Cache.TTLRatings,
			cache.ClassCatalog:   cfg.Cache.TTLCatalog,
		},
		DegradedTTL: cfg.Cache.TTLDegraded,
		StaleGrace:  cfg.Cache.StaleGrace,
	})
	if err != nil {
		return err
	}

	policy := retry.DefaultPolicy()
	stremioClient := stremio.NewClient(stremio.Config{
		BaseURL:        cfg.Stremio.APIURL,
		Timeout:        cfg.Stremio.Timeout,
		RequestsPerSec: float64(cfg.Stremio.RateLimit),
	}, policy)
	tmdbClient := tmdb.NewClient(tmdb.Config{
		BaseURL:        cfg.TMDB.BaseURL,
		APIKey:         cfg.TMDB.APIKey,
		Timeout:        cfg.TMDB.Timeout,
		RequestsPerSec: float64(cfg.TMDB.RateLimit),
	}, policy)
	mdblistClient := mdblist.NewClient(mdblist.Config{
		BaseURL:        cfg.MDBList.BaseURL,
		Timeout:        cfg.MDBList.Timeout,
		RequestsPerSec: float64(cfg.MDBList.RateLimit),
	}, policy)

	engine := recommend.NewEngine(
		recommend.NewSeedCollector(stremioClient, manager, cfg.Limits.MaxSeeds),
		recommend.NewDiscoverer(tmdbClient, manager, tmdb.DiscoverFilters{
			VoteCountMin:   cfg.TMDB.Discover.VoteCountMin,
			VoteCountMax:   cfg.TMDB.Discover.VoteCountMax,
			VoteAverageMin: cfg.TMDB.Discover.MinAverage,
			SortBy:         "vote_average.desc",
		}),
		recommend.NewEnricher(tmdbClient, mdblistClient, manager, cfg.Limits.MaxConcurrent),
		manager,
		recommend.EngineConfig{
			MaxPerSeed:    cfg.Limits.MaxPerSeed,
			MaxConcurrent: cfg.Limits.MaxConcurrent,
			SoftDeadline:  cfg.Limits.SoftDeadline,
			Weights: recommend.Weights{
				Frequency: cfg.Scoring.FrequencyWeight,
				Rating:    cfg.Scoring.RatingWeight,
			},
		},
	)

	registry := warming.NewRegistry(store, sealer, cfg.Warming.MaxUsers, cfg.Warming.UserTTL)

	handlers := api.NewHandlers(engine, codec, registry, api.Options{
		Version:           version,
		RateLimitReqs:     cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		DefaultTMDBKey:    cfg.TMDB.APIKey,
		DefaultMDBListKey: cfg.MDBList.APIKey,
	})
	httpServer := api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers.Router())

	slogger := slog.New(logging.NewSlogHandler())
	tree := suture.New("suggestarr", suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: slogger}).MustHook(),
	})
	tree.Add(httpServer)
	if cfg.Warming.Enabled {
		tree.Add(warming.NewWarmer(registry, engine, cfg.Warming.Interval, cfg.Warming.Threshold))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

// openStore opens the Badger store, falling back to the in-memory store
// when no path is configured or the directory cannot be opened. Cache
// contents are always safe to lose.
func openStore(cfg *config.Config) cache.Store {
	if cfg.Cache.Path == "" {
		logging.Info().Msg("no cache path configured, using in-memory store")
		return cache.NewMemoryStore()
	}
	store, err := cache.OpenBadger(cfg.Cache.Path)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.Cache.Path).Msg("cannot open cache directory, falling back to in-memory store")
		return cache.NewMemoryStore()
	}
	return store
}
