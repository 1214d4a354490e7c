// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
)

// requestMetrics records per-request counters, durations, and an access
// log line. Paths are bucketed by route pattern, never by raw path, so
// tokens stay out of labels and logs.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		if pattern == "" {
			pattern = "unmatched"
		}
		status := strconv.Itoa(ww.Status())

		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())

		logging.Debug().
			Str("method", r.Method).
			Str("route", pattern).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
