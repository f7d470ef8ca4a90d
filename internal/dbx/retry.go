package dbx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dmitrijs2005/booklend/internal/common"
)

const (
	defaultMaxAttempts  = 2
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

// RetryOption configures Retry using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the total number of attempts (first run included).
func WithMaxAttempts(attempts int) RetryOption {
	return func(c *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the first retry. Later retries double it.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the share of the delay added as random jitter.
func WithJitterFactor(factor float64) RetryOption {
	return func(c *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = factor
		return nil
	}
}

// Retry runs fn and re-runs it while it fails with a conflict (see IsConflict),
// up to the configured number of attempts. Any other error fails fast.
// When attempts are exhausted the last error is wrapped with common.ErrTxConflict.
//
// Default: two attempts, i.e. a single retry after ~10ms.
func Retry(ctx context.Context, fn func(ctx context.Context) error, options ...RetryOption) error {
	cfg := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsConflict(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", common.ErrTxConflict, lastErr)
}
