package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Algorithm represents the rate limiting algorithm type
type Algorithm string

const (
	AlgorithmTokenBucket      Algorithm = "token_bucket"
	AlgorithmSlidingWindowLog Algorithm = "sliding_window_log"
)

// Config represents rate limit configuration
type Config struct {
	// Algorithm to use
	Algorithm Algorithm

	// Limit is the maximum number of requests per window.
	// Zero means unlimited: every request is admitted.
	Limit int64

	// Window duration
	Window time.Duration

	// Burst allowance (additional requests allowed in short bursts)
	Burst int64
}

// LimitInfo contains information about current limit state
type LimitInfo struct {
	// Allowed indicates if the request is allowed
	Allowed bool

	// Limit is the maximum number of requests allowed
	Limit int64

	// Remaining is the number of requests remaining
	Remaining int64

	// Reset is when the limit will reset
	Reset time.Time

	// RetryAfter is how long to wait before retrying (if not allowed)
	RetryAfter time.Duration
}

// Limiter is the main rate limiter interface.
// Allow is a hard admission gate: a rejected request is never queued,
// the caller decides whether to fail or fall through.
type Limiter interface {
	// Allow checks if a request is allowed and returns limit info
	Allow(ctx context.Context, key string) (*LimitInfo, error)

	// AllowN checks if N requests are allowed
	AllowN(ctx context.Context, key string, n int64) (*LimitInfo, error)

	// GetInfo returns current limit info without consuming tokens
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Reset resets the limit for a key
	Reset(ctx context.Context, key string) error
}

// New creates a limiter for the configured algorithm
func New(config Config) (Limiter, error) {
	switch config.Algorithm {
	case AlgorithmSlidingWindowLog, "":
		return NewSlidingWindowLogLimiter(config), nil
	case AlgorithmTokenBucket:
		return NewTokenBucketLimiter(config), nil
	default:
		return nil, fmt.Errorf("unknown rate limit algorithm: %s", config.Algorithm)
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Info *LimitInfo
	Key  string
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %v", e.Key, e.Info.RetryAfter)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	_, ok := err.(*RateLimitError)
	return ok
}
