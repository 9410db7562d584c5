package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"fantiadl/pkg/config"
	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.Backoff = &ConstantBackoff{Delay: time.Millisecond}
	return cfg
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	expected := []time.Duration{
		0,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, want := range expected {
		assert.Equal(t, want, backoff.NextDelay(attempt), "attempt %d", attempt)
	}
}

func TestRetryLogsTarget(t *testing.T) {
	tl := logger.NewTestLogger()
	cfg := fastConfig(3)
	cfg.Logger = tl
	cfg.Target = "https://fantia.jp/api/v1/posts/1"

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errs.New(errs.ErrorTypeServerError, 502, "bad gateway")
		}
		return nil
	})

	require.NoError(t, err)
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "retrying request", warns[0].Message)
	assert.Equal(t, "https://fantia.jp/api/v1/posts/1", warns[0].Fields["url"])
	assert.Equal(t, 1, warns[0].Fields["attempt"])
	assert.Error(t, warns[0].Error)
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	var retried []int

	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, errs.ErrorTypeRateLimit, errs.TypeOf(err))
}

func TestRetrySkipsNonRetryableErrors(t *testing.T) {
	for _, err := range []error{
		errs.New(errs.ErrorTypeAuth, 401, "expired"),
		errs.New(errs.ErrorTypeIntegrity, 0, "short"),
		errors.New("untyped"),
	} {
		calls := 0
		got := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
			calls++
			return err
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, err, got)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, 0, "reset")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.ErrorTypeNetwork, 0, "reset")
		}
		return "page", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "page", got)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     3,
	}, nil)

	assert.Equal(t, 4, cfg.MaxAttempts)
	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, eb.BaseDelay)
	assert.Equal(t, 3.0, eb.Multiplier)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 7*time.Second, ParseRetryAfter("7", now))
	assert.Equal(t, 30*time.Second, ParseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, ParseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
	assert.Zero(t, ParseRetryAfter("", now))
	assert.Zero(t, ParseRetryAfter("soon", now))
	assert.Zero(t, ParseRetryAfter("-3", now))
}

func TestRetryHonoursRetryAfter(t *testing.T) {
	cfg := fastConfig(2)
	var delays []time.Duration
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			e := errs.FromStatus(http.StatusTooManyRequests, "https://fantia.jp/api/v1/me")
			e.RetryAfter = 20 * time.Millisecond
			return e
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, delays)
}
