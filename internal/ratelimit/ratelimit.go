// Package ratelimit provides request-level rate limiting for the HTTP API.
//
// This is the cheap, in-memory front line that absorbs bursts before they
// reach the persistent quota ledger (internal/quota): the limiter smooths
// request rates per subject, the ledger enforces billable generation
// ceilings. The limiter fails open on malfunction — blocking all traffic
// because a limiter broke is worse than briefly not limiting.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. The key is opaque —
	// callers construct it (e.g. "chat:<subject_id>").
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
