// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package userconfig

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies install tokens. The token is an HS256 JWT
// carrying the user config as a claim, so the server stays stateless: the
// manifest URL is the only storage a user needs.
type Codec struct {
	key    []byte
	issuer string
}

var (
	// ErrInvalidToken covers malformed, tampered, or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid install token")
)

type tokenClaims struct {
	Config UserConfig `json:"cfg"`
	jwt.RegisteredClaims
}

// NewCodec derives the signing key from the server salt. The salt must be
// non-empty; rotating it invalidates every issued token.
func NewCodec(salt string) (*Codec, error) {
	if salt == "" {
		return nil, errors.New("token salt must not be empty")
	}
	key := sha256.Sum256([]byte("suggestarr-token:" + salt))
	return &Codec{key: key[:], issuer: "suggestarr"}, nil
}

// Encode normalizes and validates cfg, then returns the signed token.
func (c *Codec) Encode(cfg UserConfig) (string, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	claims := tokenClaims{
		Config: cfg,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign install token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the embedded config with
// defaults applied. Tokens have no expiry: the install URL is long-lived
// and revocation happens by changing the Stremio credential.
func (c *Codec) Decode(token string) (*UserConfig, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.key, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	cfg := claims.Config
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &cfg, nil
}
