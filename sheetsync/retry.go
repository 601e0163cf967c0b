package sheetsync

import (
	"context"
	"log/slog"
	"time"
)

// withRetry runs fn with exponential backoff: up to maxRetries retries,
// base backoff doubled each attempt. It respects context cancellation
// between attempts and gives up immediately on non-retryable errors.
func withRetry(ctx context.Context, logger *slog.Logger, maxRetries int, base time.Duration, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}
		if !retryable(err) {
			return lastErr
		}

		if attempt < maxRetries {
			wait := base * (1 << uint(attempt))
			logger.WarnContext(ctx, "sheetsync: retrying call",
				"op", op,
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}
