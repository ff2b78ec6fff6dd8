package infra

import (
	"context"
	"log/slog"
	"time"
)

const (
	// Standard backoff constants for long-lived reconnect loops.
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: baseDelay * 2^retryCount, capped at maxDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}
	// 2^30 seconds is already far beyond maxDelay; cap early to avoid
	// shifting into overflow.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)
	if backoff > maxDelay {
		return maxDelay
	}
	return backoff
}

// Outcome classifies one failed attempt.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeRetryable:
		return "RETRYABLE"
	case OutcomeFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Classifier maps an error to an Outcome. A nil error must map to OutcomeOK.
type Classifier func(error) Outcome

// Retry runs fn up to attempts times with a fixed short delay between
// retryable failures. It replaces ad-hoc retry-with-sleep loops: one bounded
// combinator, one classification of each failure. A fatal classification
// stops immediately; exhausting attempts returns the last error.
func Retry(ctx context.Context, name string, attempts int, delay time.Duration, classify Classifier, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		switch classify(lastErr) {
		case OutcomeOK:
			return nil
		case OutcomeFatal:
			return lastErr
		}

		if attempt < attempts-1 {
			slog.Warn("Retrying after transient failure",
				slog.String("op", name),
				slog.Int("attempt", attempt+1),
				slog.Any("error", lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
