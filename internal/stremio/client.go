// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package stremio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/metrics"
	"github.com/suggestarr/suggestarr/internal/retry"
)

// ErrUnauthorized means the Stremio credential was rejected. Not retried.
var ErrUnauthorized = errors.New("stremio: credential rejected")

const libraryCollection = "libraryItem"

// Config holds the client settings, normally taken from the server
// configuration.
type Config struct {
	// BaseURL is the API origin without a path; request paths are
	// appended per call.
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client is a rate-limited Stremio API client.
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
		log:     logging.With().Str("component", "stremio").Logger(),
	}
}

type datastoreGetRequest struct {
	AuthKey    string   `json:"authKey"`
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
	All        bool     `json:"all"`
}

type datastoreGetResponse struct {
	Result []LibraryItem `json:"result"`
	Error  *apiError     `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GetLibrary fetches the full library collection for the given
// credential. Transient failures are retried under the client's policy;
// a rejected credential returns ErrUnauthorized immediately.
func (c *Client) GetLibrary(ctx context.Context, authKey string) ([]LibraryItem, error) {
	body, err := json.Marshal(datastoreGetRequest{
		AuthKey:    authKey,
		Collection: libraryCollection,
		IDs:        []string{},
		All:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal datastoreGet request: %w", err)
	}

	var items []LibraryItem
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		items, err = c.datastoreGet(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("items", len(items)).Msg("library fetched")
	return items, nil
}

func (c *Client) datastoreGet(ctx context.Context, body []byte) ([]LibraryItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/datastoreGet", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestErrors.WithLabelValues("stremio", "datastore_get").Inc()
		return nil, fmt.Errorf("stremio request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestDuration.WithLabelValues("stremio", "datastore_get").Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Permanent(ErrUnauthorized)
	case resp.StatusCode >= 500:
		metrics.UpstreamRequestErrors.WithLabelValues("stremio", "datastore_get").Inc()
		return nil, fmt.Errorf("stremio status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamRequestErrors.WithLabelValues("stremio", "datastore_get").Inc()
		return nil, retry.Permanent(fmt.Errorf("stremio status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed datastoreGetResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		// The datastore reports credential problems in-band with a 200.
		if parsed.Error.Code == 1 {
			return nil, retry.Permanent(ErrUnauthorized)
		}
		return nil, retry.Permanent(fmt.Errorf("stremio error %d: %s", parsed.Error.Code, parsed.Error.Message))
	}

	return parsed.Result, nil
}
