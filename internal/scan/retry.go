package scan

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
)

// withRetry runs fn up to retryAttempts times with exponential backoff.
// The last error wins; context cancellation aborts between attempts.
func withRetry(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		logger.Debug("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
