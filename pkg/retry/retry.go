package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fantiadl/pkg/config"
	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts counts the first try; 1 disables retries
	MaxAttempts int
	Backoff     BackoffStrategy
	RetryIf     func(error) bool
	// OnRetry is called before each pause
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
	// Target names the retried resource in logs, usually a URL
	Target string
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 5,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// FromSettings builds a Config from the retry section of the configuration
func FromSettings(s config.RetryConfig, log logger.Logger) *Config {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Config{
		MaxAttempts: s.MaxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    s.InitialBackoff,
			MaxDelay:     s.MaxBackoff,
			Multiplier:   s.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// DefaultRetryIf retries typed transient errors only. Untyped errors are not
// retried so that application failures never loop.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return false
}

// ErrMaxAttempts wraps the last error once the attempt budget is spent
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// Do executes op until it succeeds, returns a non-retryable error, the
// attempt budget is spent or ctx is cancelled.
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w (%d): %w", ErrMaxAttempts, cfg.MaxAttempts, err)
		}

		delay := max(cfg.Backoff.NextDelay(attempt), retryAfter(err))
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		logger.LogRetry(log, cfg.Target, attempt, delay, err)

		if waitErr := Wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
