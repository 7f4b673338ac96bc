// Package retry implements the bounded retry policy for API operations:
// a fixed attempt budget with linearly growing backoff, short-circuited
// for errors a repeat attempt cannot fix.
package retry

import (
	"context"
	"time"

	"bililottery/pkg/errors"
	"bililottery/pkg/logger"
)

const (
	// DefaultMaxAttempts bounds how often an operation runs in total,
	// first try included.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is multiplied by the failed attempt number to get
	// the wait before the next try.
	DefaultBaseDelay = 800 * time.Millisecond
)

// Config tunes the policy. Zero values fall back to the defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      logger.Logger

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.sleep == nil {
		c.sleep = wait
	}
	return c
}

// Do runs op until it succeeds, the attempt budget runs out, or an error
// arrives that retrying cannot fix. op is invoked fresh on every attempt,
// so request parameters that embed a timestamp are rebuilt each time.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !errors.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * cfg.BaseDelay
		cfg.Logger.WarnWithFields("attempt failed, backing off", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"delay":        delay,
			"error":        err.Error(),
		})
		if werr := cfg.sleep(ctx, delay); werr != nil {
			return werr
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
