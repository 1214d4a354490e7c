// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package userconfig

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts credentials at rest. Used by the warming registry so the
// persisted user set never stores a plaintext Stremio credential.
type Sealer struct {
	key []byte
}

// ErrSealedSecret is returned when a sealed value cannot be opened, which
// usually means the server salt changed since it was written.
var ErrSealedSecret = errors.New("cannot open sealed secret")

// NewSealer derives the encryption key from the server salt.
func NewSealer(salt string) (*Sealer, error) {
	if salt == "" {
		return nil, errors.New("sealer salt must not be empty")
	}
	key := sha256.Sum256([]byte("suggestarr-seal:" + salt))
	return &Sealer{key: key[:]}, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 and returns a base64url
// string with the nonce prepended.
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedSecret, err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", ErrSealedSecret
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}

	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrSealedSecret
	}
	return string(plaintext), nil
}
