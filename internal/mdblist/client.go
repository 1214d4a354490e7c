// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package mdblist enriches candidates with aggregate ratings from the
// MDBList API. Enrichment is best-effort: callers degrade to TMDB vote
// averages when this client fails.
package mdblist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
	"github.com/suggestarr/suggestarr/internal/retry"
)

// ErrNoAPIKey means the user has no MDBList key configured; enrichment
// is skipped entirely rather than degraded.
var ErrNoAPIKey = errors.New("mdblist: no api key configured")

// Rating is the subset of an MDBList record the pipeline reads. Fields
// arrive on mixed scales; Aggregate normalizes them.
type Rating struct {
	Score            float64     `json:"score"`
	IMDBRating       json.Number `json:"imdbrating"`
	TomatoesRating   json.Number `json:"tomatoesrating"`
	MetacriticRating json.Number `json:"metacriticrating"`
}

// Aggregate collapses the record to a single 0-10 rating, preferring the
// MDBList composite score, then IMDb, then Rotten Tomatoes, then
// Metacritic. The last two arrive on a 0-100 scale. Zero means no usable
// rating.
func (r *Rating) Aggregate() float64 {
	if r == nil {
		return 0
	}
	if r.Score > 0 {
		return clamp(r.Score)
	}
	if v, ok := numValue(r.IMDBRating); ok {
		return clamp(v)
	}
	if v, ok := numValue(r.TomatoesRating); ok {
		return clamp(v / 10)
	}
	if v, ok := numValue(r.MetacriticRating); ok {
		return clamp(v / 10)
	}
	return 0
}

func numValue(n json.Number) (float64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Config holds client settings.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client is a rate-limited MDBList client. The API key is per-user and
// passed at call time, never stored.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	log     zerolog.Logger
}

// NewClient builds a Client with the given retry policy.
func NewClient(cfg Config, policy retry.Policy) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		policy:  policy,
		log:     logging.With().Str("component", "mdblist").Logger(),
	}
}

// GetByIMDB fetches the rating record for an IMDb id.
func (c *Client) GetByIMDB(ctx context.Context, apiKey, imdbID string) (*Rating, error) {
	return c.get(ctx, apiKey, url.Values{"i": {imdbID}})
}

// GetByTMDB fetches the rating record by TMDB id when the IMDb id is not
// yet known. mediaType is "movie" or "show" in MDBList's vocabulary.
func (c *Client) GetByTMDB(ctx context.Context, apiKey string, tmdbID int, mediaType string) (*Rating, error) {
	return c.get(ctx, apiKey, url.Values{
		"tm": {strconv.Itoa(tmdbID)},
		"m":  {mediaType},
	})
}

func (c *Client) get(ctx context.Context, apiKey string, query url.Values) (*Rating, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	query.Set("apikey", apiKey)

	var rating *Rating
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+query.Encode(), nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.UpstreamRequestErrors.WithLabelValues("mdblist", "rating").Inc()
			return fmt.Errorf("mdblist request: %w", err)
		}
		defer resp.Body.Close()
		metrics.UpstreamRequestDuration.WithLabelValues("mdblist", "rating").Observe(time.Since(start).Seconds())

		switch {
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode >= 500:
			metrics.UpstreamRequestErrors.WithLabelValues("mdblist", "rating").Inc()
			return fmt.Errorf("mdblist status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Permanent(fmt.Errorf("mdblist: api key rejected"))
		case resp.StatusCode != http.StatusOK:
			metrics.UpstreamRequestErrors.WithLabelValues("mdblist", "rating").Inc()
			return retry.Permanent(fmt.Errorf("mdblist status %d", resp.StatusCode))
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		parsed := &Rating{}
		if err := json.Unmarshal(raw, parsed); err != nil {
			return retry.Permanent(fmt.Errorf("decode rating: %w", err))
		}
		rating = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}
