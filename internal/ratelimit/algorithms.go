package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SlidingWindowLogLimiter implements the sliding window log algorithm.
// Each admitted request is recorded with its timestamp; on every check,
// timestamps older than the window are purged before counting.
type SlidingWindowLogLimiter struct {
	config Config
	logs   sync.Map // map[string]*requestLog
}

type requestLog struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// NewSlidingWindowLogLimiter creates a new sliding window log limiter
func NewSlidingWindowLogLimiter(config Config) *SlidingWindowLogLimiter {
	return &SlidingWindowLogLimiter{
		config: config,
	}
}

// Allow checks if a request is allowed
func (s *SlidingWindowLogLimiter) Allow(ctx context.Context, key string) (*LimitInfo, error) {
	return s.AllowN(ctx, key, 1)
}

// AllowN checks if N requests are allowed
func (s *SlidingWindowLogLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitInfo, error) {
	if s.config.Limit <= 0 {
		// Unlimited
		return &LimitInfo{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	logInterface, _ := s.logs.LoadOrStore(key, &requestLog{})

	log := logInterface.(*requestLog)
	log.mu.Lock()
	defer log.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-s.config.Window)

	// Purge timestamps outside the window
	validTimestamps := log.timestamps[:0]
	for _, ts := range log.timestamps {
		if ts.After(windowStart) {
			validTimestamps = append(validTimestamps, ts)
		}
	}
	log.timestamps = validTimestamps

	limit := s.config.Limit + s.config.Burst
	currentCount := int64(len(log.timestamps))
	allowed := currentCount+n <= limit

	if allowed {
		for i := int64(0); i < n; i++ {
			log.timestamps = append(log.timestamps, now)
		}
		currentCount += n
	}

	remaining := limit - currentCount
	if remaining < 0 {
		remaining = 0
	}

	// Reset is the time when the oldest request will expire
	var reset time.Time
	if len(log.timestamps) > 0 {
		reset = log.timestamps[0].Add(s.config.Window)
	} else {
		reset = now.Add(s.config.Window)
	}

	// Retry after: wait until the oldest request expires
	var retryAfter time.Duration
	if !allowed && len(log.timestamps) > 0 {
		retryAfter = time.Until(log.timestamps[0].Add(s.config.Window))
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return &LimitInfo{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		Reset:      reset,
		RetryAfter: retryAfter,
	}, nil
}

// GetInfo returns current limit info without consuming a slot
func (s *SlidingWindowLogLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	if s.config.Limit <= 0 {
		return &LimitInfo{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	limit := s.config.Limit + s.config.Burst

	logInterface, ok := s.logs.Load(key)
	if !ok {
		return &LimitInfo{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			Reset:     time.Now().Add(s.config.Window),
		}, nil
	}

	log := logInterface.(*requestLog)
	log.mu.Lock()
	defer log.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-s.config.Window)

	var currentCount int64
	for _, ts := range log.timestamps {
		if ts.After(windowStart) {
			currentCount++
		}
	}

	remaining := limit - currentCount
	if remaining < 0 {
		remaining = 0
	}

	return &LimitInfo{
		Allowed:   currentCount < limit,
		Limit:     limit,
		Remaining: remaining,
		Reset:     now.Add(s.config.Window),
	}, nil
}

// Reset clears the log for a key
func (s *SlidingWindowLogLimiter) Reset(ctx context.Context, key string) error {
	s.logs.Delete(key)
	return nil
}

// TokenBucketLimiter implements the token bucket algorithm on top of
// golang.org/x/time/rate, one bucket per key.
type TokenBucketLimiter struct {
	config  Config
	buckets sync.Map // map[string]*rate.Limiter
}

// NewTokenBucketLimiter creates a new token bucket limiter
func NewTokenBucketLimiter(config Config) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		config: config,
	}
}

func (t *TokenBucketLimiter) getBucket(key string) *rate.Limiter {
	if b, ok := t.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}

	refillRate := rate.Limit(float64(t.config.Limit) / t.config.Window.Seconds())
	burst := int(t.config.Limit + t.config.Burst)

	b, _ := t.buckets.LoadOrStore(key, rate.NewLimiter(refillRate, burst))
	return b.(*rate.Limiter)
}

// Allow checks if a request is allowed
func (t *TokenBucketLimiter) Allow(ctx context.Context, key string) (*LimitInfo, error) {
	return t.AllowN(ctx, key, 1)
}

// AllowN checks if N requests are allowed
func (t *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitInfo, error) {
	if t.config.Limit <= 0 {
		return &LimitInfo{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	bucket := t.getBucket(key)
	allowed := bucket.AllowN(time.Now(), int(n))

	limit := t.config.Limit + t.config.Burst
	remaining := int64(bucket.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		// Time needed to refill n tokens
		retryAfter = time.Duration(float64(n)/float64(bucket.Limit())*float64(time.Second)) + time.Millisecond
	}

	return &LimitInfo{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		Reset:      time.Now().Add(t.config.Window),
		RetryAfter: retryAfter,
	}, nil
}

// GetInfo returns current limit info without consuming tokens
func (t *TokenBucketLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	if t.config.Limit <= 0 {
		return &LimitInfo{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	bucket := t.getBucket(key)
	limit := t.config.Limit + t.config.Burst
	remaining := int64(bucket.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	return &LimitInfo{
		Allowed:   remaining > 0,
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Now().Add(t.config.Window),
	}, nil
}

// Reset drops the bucket for a key
func (t *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	t.buckets.Delete(key)
	return nil
}
