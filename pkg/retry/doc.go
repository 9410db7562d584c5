// Package retry implements bounded retries with exponential backoff for the
// platform transport. Only typed transient errors (network, rate limit and
// server errors) are retried; everything else is returned on first failure.
//
//	cfg := retry.FromSettings(settings.Retry, log)
//	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
//		return fetchPage(ctx, n)
//	})
//
// Cancelling ctx interrupts a pending backoff and returns ctx.Err().
package retry
