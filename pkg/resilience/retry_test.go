package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	})

	calls := 0
	err := retry.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	})

	calls := 0
	err := retry.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
	})

	calls := 0
	baseErr := errors.New("persistent failure")
	err := retry.Execute(context.Background(), func() error {
		calls++
		return baseErr
	})

	// MaxRetries counts retries after the first attempt
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", err)
	}
	if !errors.Is(err, baseErr) {
		t.Errorf("expected wrapped base error, got %v", err)
	}
}

func TestRetryNonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	retry := NewRetry(RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
		RetryableChecker: func(err error) bool {
			return !errors.Is(err, permanent)
		},
	})

	calls := 0
	err := retry.Execute(context.Background(), func() error {
		calls++
		return permanent
	})

	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxRetries:     10,
		InitialBackoff: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := retry.Execute(ctx, func() error {
		calls++
		return errors.New("failing")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected cancellation during first backoff, got %d calls", calls)
	}
}

func TestCalculateBackoffExponential(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped at MaxBackoff
	}

	for _, tt := range tests {
		if got := retry.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestCalculateBackoffJitterBounds(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		JitterFraction:    0.1,
	})

	for i := 0; i < 100; i++ {
		got := retry.calculateBackoff(0)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jittered backoff %v outside expected bounds", got)
		}
	}
}

func TestPerProviderRetryIsolatesStats(t *testing.T) {
	ppr := NewPerProviderRetry(RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
	})

	ctx := context.Background()

	_ = ppr.Execute(ctx, "gemini", func() error { return nil })
	_ = ppr.Execute(ctx, "mistral", func() error { return errors.New("down") })

	stats := ppr.GetAllStats()

	if stats["gemini"].TotalSuccesses != 1 || stats["gemini"].TotalFailures != 0 {
		t.Errorf("unexpected gemini stats: %+v", stats["gemini"])
	}
	if stats["mistral"].TotalFailures != 1 || stats["mistral"].TotalSuccesses != 0 {
		t.Errorf("unexpected mistral stats: %+v", stats["mistral"])
	}
	if stats["mistral"].TotalRetries != 1 {
		t.Errorf("expected 1 retry for mistral, got %d", stats["mistral"].TotalRetries)
	}
}
