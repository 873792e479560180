// Package retry provides an opt-in exponential backoff helper.
//
// Adapters never retry on their own; call sites wrap idempotent reads and
// writes that are judged safe to repeat.
package retry

import (
	"context"
	"time"

	apperrors "rpas-compliance/internal/common/errors"
)

// Config defines retry behavior for transient failures.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   10 * time.Second,
}

// Do executes op, retrying with exponential backoff while the classified
// error is retryable. The last error is returned once retries are exhausted
// or the context is done.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultConfig
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !apperrors.IsRetryable(apperrors.Classify(lastErr)) || attempt == cfg.MaxRetries {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
