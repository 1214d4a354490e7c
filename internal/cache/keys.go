// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Class partitions cached artifacts by lifecycle. Each class carries its
// own freshness TTL.
type Class string

const (
	ClassLibrary   Class = "library"
	ClassDiscovery Class = "discovery"
	ClassRatings   Class = "ratings"
	ClassCatalog   Class = "catalog"
)

func (c Class) String() string { return string(c) }

// Key derives a deterministic cache key from the class, the user's
// credential fingerprint, and any request parameters. Parameters are
// hashed, so raw credentials or API keys passed here never reach the
// store as key material in the clear. Identical inputs always map to the
// same key.
func Key(class Class, fingerprint string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0x1f})
	h.Write([]byte(strings.Join(params, "\x1f")))
	digest := hex.EncodeToString(h.Sum(nil)[:16])
	return "v1:" + string(class) + ":" + digest
}
