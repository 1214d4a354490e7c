// Suggestarr - Personalized Recommendation Catalogs for Stremio
// Copyright 2026 Suggestarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/suggestarr/suggestarr

// Package retry provides a capped-exponential-backoff helper driven by an
// explicit policy value, shared by all upstream clients.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes a retry schedule. The zero value performs a single
// attempt with no retries.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; each subsequent
	// retry doubles it, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the per-retry delay.
	MaxDelay time.Duration

	// JitterBound is the upper bound of the random jitter added to each
	// delay to avoid synchronized retries.
	JitterBound time.Duration
}

// DefaultPolicy matches the pipeline's retry budget: one initial attempt
// plus at most two retries on transient failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		JitterBound: 100 * time.Millisecond,
	}
}

// permanentError wraps an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do invokes op until it succeeds, returns a permanent error, exhausts the
// policy's attempts, or ctx is canceled. The returned error is the last
// error observed, unwrapped from any Permanent marker.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.delay(attempt)); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err
	}

	return fmt.Errorf("%d attempts exhausted: %w", attempts, lastErr)
}

// delay returns the backoff before the given retry attempt (attempt >= 1).
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1) // base, 2*base, 4*base, ...
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterBound > 0 {
		d += time.Duration(rand.Int63n(int64(p.JitterBound))) //nolint:gosec // jitter, not crypto
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
