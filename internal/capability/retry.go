package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// Retry runs fn up to attempts times, sleeping backoff between attempts and
// doubling it each time. The context aborts both the wait and the loop.
// Capability calls are never retried indefinitely.
func Retry(ctx context.Context, attempts int, backoff time.Duration, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			log.Warn("%s failed (attempt %d/%d): %v", op, attempt, attempts, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
