// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package userconfig

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := UserConfig{AuthKey: "abc123"}
	cfg.Normalize()

	if cfg.NumRows != DefaultRows {
		t.Errorf("NumRows = %d, want %d", cfg.NumRows, DefaultRows)
	}
	if cfg.MinRating != DefaultMinRating {
		t.Errorf("MinRating = %v, want %v", cfg.MinRating, DefaultMinRating)
	}
	if cfg.IncludeMovies == nil || !*cfg.IncludeMovies {
		t.Error("IncludeMovies should default to true")
	}
	if cfg.IncludeSeries == nil || !*cfg.IncludeSeries {
		t.Error("IncludeSeries should default to true")
	}
	if cfg.UseLovedItems == nil || !*cfg.UseLovedItems {
		t.Error("UseLovedItems should default to true")
	}
}

func TestNormalizePreservesExplicitValues(t *testing.T) {
	f := false
	cfg := UserConfig{AuthKey: "abc123", NumRows: 12, MinRating: 8.5, IncludeSeries: &f}
	cfg.Normalize()

	if cfg.NumRows != 12 {
		t.Errorf("NumRows = %d, want 12", cfg.NumRows)
	}
	if cfg.MinRating != 8.5 {
		t.Errorf("MinRating = %v, want 8.5", cfg.MinRating)
	}
	if *cfg.IncludeSeries {
		t.Error("explicit IncludeSeries=false was overwritten")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	f := false
	tests := []struct {
		name string
		cfg  UserConfig
	}{
		{"missing auth key", UserConfig{NumRows: 5}},
		{"rows too high", UserConfig{AuthKey: "k", NumRows: 21}},
		{"rating out of range", UserConfig{AuthKey: "k", NumRows: 5, MinRating: 11}},
		{"both types disabled", UserConfig{AuthKey: "k", NumRows: 5, IncludeMovies: &f, IncludeSeries: &f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestFingerprintStableAndOpaque(t *testing.T) {
	cfg := UserConfig{AuthKey: "super-secret-credential"}

	fp1 := cfg.Fingerprint()
	fp2 := cfg.Fingerprint()
	if fp1 != fp2 {
		t.Error("fingerprint is not deterministic")
	}
	if strings.Contains(fp1, "super-secret") {
		t.Error("fingerprint leaks the raw credential")
	}

	other := UserConfig{AuthKey: "different"}
	if other.Fingerprint() == fp1 {
		t.Error("different credentials produced the same fingerprint")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-salt")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	in := UserConfig{AuthKey: "stremio-key", MDBListAPIKey: "mdb", NumRows: 7, MinRating: 7.5}
	token, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.AuthKey != in.AuthKey {
		t.Errorf("AuthKey = %q, want %q", out.AuthKey, in.AuthKey)
	}
	if out.NumRows != 7 || out.MinRating != 7.5 {
		t.Errorf("knobs not preserved: rows=%d rating=%v", out.NumRows, out.MinRating)
	}
	if out.MDBListAPIKey != "mdb" {
		t.Errorf("MDBListAPIKey = %q, want mdb", out.MDBListAPIKey)
	}
}

func TestTokenRejectsTamperingAndWrongKey(t *testing.T) {
	codec, _ := NewCodec("salt-a")
	token, err := codec.Encode(UserConfig{AuthKey: "k"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := codec.Decode(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: got %v, want ErrInvalidToken", err)
	}

	other, _ := NewCodec("salt-b")
	if _, err := other.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong key: got %v, want ErrInvalidToken", err)
	}

	if _, err := codec.Decode("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: got %v, want ErrInvalidToken", err)
	}
}

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer("test-salt")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, err := sealer.Seal("credential")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(sealed, "credential") {
		t.Error("sealed value contains plaintext")
	}

	plain, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "credential" {
		t.Errorf("Open = %q, want credential", plain)
	}

	other, _ := NewSealer("other-salt")
	if _, err := other.Open(sealed); !errors.Is(err, ErrSealedSecret) {
		t.Errorf("wrong key: got %v, want ErrSealedSecret", err)
	}
}
