package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// JitterFraction adds random jitter as a fraction of the computed delay.
	JitterFraction float64
}

// Do executes fn with exponential back-off retry logic. Context cancellation
// stops retries immediately and returns the context error.
func (r RetryConfig) Do(ctx context.Context, operationName string, fn func(ctx context.Context) error) error {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 1
	}
	delay := r.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < r.MaxAttempts {
			sleep := delay
			if r.JitterFraction > 0 {
				jitter := time.Duration(float64(delay) * r.JitterFraction * (rand.Float64()*2 - 1))
				sleep += jitter
			}
			zap.L().Warn("retry: operation failed, backing off",
				zap.String("op", operationName),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.MaxAttempts),
				zap.Duration("backoff", sleep),
				zap.Error(lastErr),
			)

			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, r.MaxAttempts, lastErr)
}
