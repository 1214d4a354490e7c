// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/suggestarr/suggestarr/internal/logging"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server runs the HTTP listener as a suture service: Serve blocks until
// the context is canceled, then shuts down gracefully.
type Server struct {
	cfg     ServerConfig
	handler http.Handler
}

// NewServer builds the supervised HTTP server around handler.
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	return &Server{cfg: cfg, handler: handler}
}

func (s *Server) String() string { return "http-server" }

// Serve listens until ctx is canceled. Listener failures propagate to
// the supervisor for restart with backoff.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return ctx.Err()
	}
}
