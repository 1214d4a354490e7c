// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package tmdb

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
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
	"github.com/suggestarr/suggestarr/internal/retry"
)

var (
	// ErrNotFound means the id does not exist upstream. Not retried.
	ErrNotFound = errors.New("tmdb: not found")

	// ErrUnavailable means the circuit breaker is open and the call was
	// shed without touching the upstream.
	ErrUnavailable = errors.New("tmdb: upstream unavailable")
)

// Config holds client settings, normally taken from server configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client is a rate-limited TMDB client. One breaker and one limiter are
// shared across all users; per-user API keys are passed at call time and
// fall back to the configured server key when empty.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	policy  retry.Policy
	log     zerolog.Logger
}

// NewClient builds a Client with the given retry policy.
func NewClient(cfg Config, policy retry.Policy) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "tmdb",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Missing ids and bad keys are caller problems, not upstream
		// health signals.
		IsSuccessful: func(err error) bool {
			return err == nil || retry.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			log := logging.With().Str("component", "tmdb").Logger()
			log.Warn().Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)),
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		policy:  policy,
		log:     logging.With().Str("component", "tmdb").Logger(),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// FindResult is the response of the external-id lookup.
type FindResult struct {
	MovieResults []Title `json:"movie_results"`
	TVResults    []Title `json:"tv_results"`
}

// FindByIMDB resolves an IMDb id to TMDB titles.
func (c *Client) FindByIMDB(ctx context.Context, apiKey, imdbID string) (*FindResult, error) {
	q := url.Values{"external_source": {"imdb_id"}}
	raw, err := c.get(ctx, apiKey, "find", "/find/"+url.PathEscape(imdbID), q)
	if err != nil {
		return nil, err
	}
	out := &FindResult{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode find result: %w", err)
	}
	return out, nil
}

// Keywords returns the keyword tags for a title. The movie and TV
// endpoints use different field names for the same list.
func (c *Client) Keywords(ctx context.Context, apiKey string, mediaType MediaType, id int) ([]Keyword, error) {
	raw, err := c.get(ctx, apiKey, "keywords", fmt.Sprintf("/%s/%d/keywords", mediaType, id), nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Keywords []Keyword `json:"keywords"` // movie
		Results  []Keyword `json:"results"`  // tv
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if len(parsed.Keywords) > 0 {
		return parsed.Keywords, nil
	}
	return parsed.Results, nil
}

type pagedTitles struct {
	Results []Title `json:"results"`
}

// DiscoverByKeywords runs a filtered keyword discovery, the primary
// candidate source.
func (c *Client) DiscoverByKeywords(ctx context.Context, apiKey string, mediaType MediaType, keywordIDs []int, f DiscoverFilters) ([]Title, error) {
	ids := make([]string, len(keywordIDs))
	for i, id := range keywordIDs {
		ids[i] = strconv.Itoa(id)
	}

	q := url.Values{
		"with_keywords":    {strings.Join(ids, "|")},
		"vote_count.gte":   {strconv.Itoa(f.VoteCountMin)},
		"vote_count.lte":   {strconv.Itoa(f.VoteCountMax)},
		"vote_average.gte": {strconv.FormatFloat(f.VoteAverageMin, 'f', 1, 64)},
		"sort_by":          {f.SortBy},
	}
	raw, err := c.get(ctx, apiKey, "discover", "/discover/"+string(mediaType), q)
	if err != nil {
		return nil, err
	}
	var parsed pagedTitles
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode discover results: %w", err)
	}
	return parsed.Results, nil
}

// Recommendations returns TMDB's own similar-title list, the fallback
// candidate source when keyword discovery comes up empty.
func (c *Client) Recommendations(ctx context.Context, apiKey string, mediaType MediaType, id int) ([]Title, error) {
	raw, err := c.get(ctx, apiKey, "recommendations", fmt.Sprintf("/%s/%d/recommendations", mediaType, id), nil)
	if err != nil {
		return nil, err
	}
	var parsed pagedTitles
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return parsed.Results, nil
}

// Details fetches the full title record with external ids in one call.
func (c *Client) Details(ctx context.Context, apiKey string, mediaType MediaType, id int) (*Details, error) {
	q := url.Values{"append_to_response": {"external_ids"}}
	raw, err := c.get(ctx, apiKey, "details", fmt.Sprintf("/%s/%d", mediaType, id), q)
	if err != nil {
		return nil, err
	}
	out := &Details{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return out, nil
}

// Popular returns the current popular titles, used as the cold-start
// catalog when a user has no usable seeds.
func (c *Client) Popular(ctx context.Context, apiKey string, mediaType MediaType) ([]Title, error) {
	raw, err := c.get(ctx, apiKey, "popular", fmt.Sprintf("/%s/popular", mediaType), nil)
	if err != nil {
		return nil, err
	}
	var parsed pagedTitles
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode popular: %w", err)
	}
	return parsed.Results, nil
}

// get performs one GET under the retry policy, the rate limiter, and the
// circuit breaker. An open breaker fails fast with ErrUnavailable.
func (c *Client) get(ctx context.Context, apiKey, operation, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		raw, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doGet(ctx, apiKey, operation, path, query)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return retry.Permanent(ErrUnavailable)
		}
		if err != nil {
			return err
		}
		body = raw
		return nil
	})
	return body, err
}

func (c *Client) doGet(ctx context.Context, apiKey, operation, path string, query url.Values) ([]byte, error) {
	if apiKey == "" {
		apiKey = c.apiKey
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", apiKey)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestErrors.WithLabelValues("tmdb", operation).Inc()
		return nil, fmt.Errorf("tmdb %s: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestDuration.WithLabelValues("tmdb", operation).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, retry.Permanent(fmt.Errorf("tmdb %s: invalid api key", operation))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		metrics.UpstreamRequestErrors.WithLabelValues("tmdb", operation).Inc()
		return nil, fmt.Errorf("tmdb %s: status %d", operation, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamRequestErrors.WithLabelValues("tmdb", operation).Inc()
		return nil, retry.Permanent(fmt.Errorf("tmdb %s: status %d", operation, resp.StatusCode))
	}

	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
