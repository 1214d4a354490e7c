// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package api exposes the Stremio addon surface: manifest, catalogs,
// the configure endpoint, health, and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suggestarr/suggestarr/internal/recommend"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

// CatalogProvider is the slice of the engine the API serves from.
type CatalogProvider interface {
	Rows(ctx context.Context, user *userconfig.UserConfig, ctype string) (*recommend.Catalog, error)
}

// ActivityRecorder marks users active for the background warmer.
type ActivityRecorder interface {
	Touch(user *userconfig.UserConfig)
}

// Options configure the router.
type Options struct {
	// Version is reported in the manifest and health payloads.
	Version string

	// RateLimitReqs/RateLimitWindow bound per-IP request rates.
	RateLimitReqs   int
	RateLimitWindow time.Duration

	// DefaultTMDBKey and DefaultMDBListKey are the server-wide upstream
	// credentials, filled into decoded user configs that carry none of
	// their own. They are never baked into issued tokens.
	DefaultTMDBKey    string
	DefaultMDBListKey string
}

// Handlers carries the API dependencies.
type Handlers struct {
	engine   CatalogProvider
	codec    *userconfig.Codec
	activity ActivityRecorder
	opts     Options
}

// NewHandlers wires the API dependencies together.
func NewHandlers(engine CatalogProvider, codec *userconfig.Codec, activity ActivityRecorder, opts Options) *Handlers {
	if opts.Version == "" {
		opts.Version = "0.0.0"
	}
	return &Handlers{engine: engine, codec: codec, activity: activity, opts: opts}
}

// Router builds the chi router. Stremio clients are browser-like and
// need permissive CORS on every addon endpoint.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(cors.AllowAll().Handler)
	if h.opts.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(h.opts.RateLimitReqs, h.opts.RateLimitWindow))
	}

	r.Get("/health", h.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/manifest.json", h.handleBareManifest)
	r.Post("/api/configure", h.handleConfigure)

	r.Route("/{token}", func(r chi.Router) {
		r.Get("/manifest.json", h.handleManifest)
		r.Get("/catalog/{type}/{id}.json", h.handleCatalog)
	})

	return r
}
