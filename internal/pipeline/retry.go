package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/offersplice/internal/store"
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// retry calls fn until it succeeds, fails with a non-retryable error, or
// MaxRetries attempts are spent. It returns the number of attempts made.
func retry(ctx context.Context, log *slog.Logger, backoff func(int) time.Duration, what string, fn func() error) (int, error) {
	var err error
	for attempt := range MaxRetries {
		err = fn()
		if err == nil || !store.IsRetryable(err) || attempt == MaxRetries-1 {
			return attempt + 1, err
		}
		log.Warn("retryable store error", "call", what, "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return attempt + 1, ctx.Err()
		}
	}
	return MaxRetries, err
}
