package escalation

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

// RetryConfig bounds retries of ledger writes made while a trigger fires.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// doWithRetry runs fn until it succeeds, attempts run out or ctx is done.
// onRetry is called before every wait.
func doWithRetry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error, onRetry func(attempt int, err error)) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// backoff doubles initial per attempt, capped at max.
func backoff(attempt int, initial, max time.Duration) time.Duration {
	d := time.Duration(1<<uint(attempt)) * initial
	if d > max || d <= 0 {
		return max
	}
	return d
}
