package infra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 60 * time.Second},
		{100, 60 * time.Second},
		{-1, 1 * time.Second},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.retryCount); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %s, want %s", tt.retryCount, got, tt.want)
		}
	}
}

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func classifyTest(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, errTransient):
		return OutcomeRetryable
	default:
		return OutcomeFatal
	}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", 3, time.Millisecond, classifyTest, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_BoundedAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", 3, time.Millisecond, classifyTest, func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", 5, time.Millisecond, classifyTest, func(ctx context.Context) error {
		calls++
		return errFatal
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal must not retry)", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "op", 3, time.Millisecond, classifyTest, func(ctx context.Context) error {
		t.Error("fn must not run with a dead context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
