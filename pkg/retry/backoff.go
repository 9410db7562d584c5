package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	errs "fantiadl/pkg/errors"
)

// BackoffStrategy computes the pause before a given retry attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff waits BaseDelay, then BaseDelay*Multiplier, and so on up
// to MaxDelay. JitterFactor spreads each delay by up to that fraction.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff starts at two seconds and doubles
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || eb.BaseDelay <= 0 {
		return 0
	}

	d := float64(eb.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= eb.Multiplier
		if eb.MaxDelay > 0 && d >= float64(eb.MaxDelay) {
			d = float64(eb.MaxDelay)
			break
		}
	}
	if eb.MaxDelay > 0 && d > float64(eb.MaxDelay) {
		d = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		d += d * eb.JitterFactor * (2*rand.Float64() - 1)
	}
	return max(time.Duration(d), 0)
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ParseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP date. It returns 0 when the header is absent, malformed or in the
// past.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

// retryAfter returns the server requested pause carried by err
func retryAfter(err error) time.Duration {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
