// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/suggestarr/suggestarr/internal/logging"
	"github.com/suggestarr/suggestarr/internal/recommend"
	"github.com/suggestarr/suggestarr/internal/userconfig"
)

const (
	addonID          = "community.suggestarr"
	addonName        = "Suggestarr"
	addonDescription = "Personalized recommendation rows built from your library"
)

// manifest is the Stremio addon descriptor.
type manifest struct {
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Resources     []string       `json:"resources"`
	Types         []string       `json:"types"`
	Catalogs      []catalogEntry `json:"catalogs"`
	BehaviorHints behaviorHints  `json:"behaviorHints"`
}

type catalogEntry struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type behaviorHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired"`
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.opts.Version,
	})
}

// handleBareManifest serves the unconfigured manifest so Stremio can
// point the user at the configure page.
func (h *Handlers) handleBareManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, manifest{
		ID:          addonID,
		Version:     h.opts.Version,
		Name:        addonName,
		Description: addonDescription,
		Resources:   []string{"catalog"},
		Types:       recommend.ContentTypes,
		Catalogs:    []catalogEntry{},
		BehaviorHints: behaviorHints{
			Configurable:          true,
			ConfigurationRequired: true,
		},
	})
}

// handleConfigure validates a user config and returns the signed token
// plus the install URL.
func (h *Handlers) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var cfg userconfig.UserConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.codec.Encode(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":       token,
		"manifestUrl": requestScheme(r) + "://" + r.Host + "/" + token + "/manifest.json",
	})
}

// handleManifest serves the per-user manifest. Catalog names come from
// the user's current rows, so the Stremio home screen shows the seed
// titles; the row set is cached, making this cheap.
func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.activity.Touch(user)

	catalogs := []catalogEntry{}
	for _, ctype := range recommend.ContentTypes {
		if !user.WantsType(ctype) {
			continue
		}
		catalog, err := h.engine.Rows(r.Context(), user, ctype)
		if err != nil {
			logging.Warn().Err(err).Str("type", ctype).Msg("manifest catalog build failed")
			continue
		}
		for _, row := range catalog.Rows {
			catalogs = append(catalogs, catalogEntry{Type: ctype, ID: row.RowID, Name: row.Title})
		}
	}

	writeJSON(w, http.StatusOK, manifest{
		ID:          addonID,
		Version:     h.opts.Version,
		Name:        addonName,
		Description: addonDescription,
		Resources:   []string{"catalog"},
		Types:       recommend.ContentTypes,
		Catalogs:    catalogs,
		BehaviorHints: behaviorHints{
			Configurable:          true,
			ConfigurationRequired: false,
		},
	})
}

// handleCatalog serves one recommendation row as a Stremio catalog.
func (h *Handlers) handleCatalog(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.activity.Touch(user)

	ctype := chi.URLParam(r, "type")
	rowID := chi.URLParam(r, "id")

	catalog, err := h.engine.Rows(r.Context(), user, ctype)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, row := range catalog.Rows {
		if row.RowID == rowID {
			writeJSON(w, http.StatusOK, map[string][]recommend.MetaPreview{"metas": row.Items})
			return
		}
	}
	// Unknown row: empty catalog rather than an error, Stremio polls
	// rows that may have rotated away.
	writeJSON(w, http.StatusOK, map[string][]recommend.MetaPreview{"metas": {}})
}

// authenticate decodes and validates the token path segment, then fills
// in the server-wide upstream keys for users that brought none.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (*userconfig.UserConfig, bool) {
	token := chi.URLParam(r, "token")
	user, err := h.codec.Decode(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired install token")
		return nil, false
	}
	if user.TMDBAPIKey == "" {
		user.TMDBAPIKey = h.opts.DefaultTMDBKey
	}
	if user.MDBListAPIKey == "" {
		user.MDBListAPIKey = h.opts.DefaultMDBListKey
	}
	return user, true
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
