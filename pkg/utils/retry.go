package utils

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so Retry gives up on it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrPermanent, err)
}

// Retry runs task with Fibonacci backoff starting at base, up to maxRetries
// extra attempts. Errors that ShouldRetry rejects end the loop at once.
func Retry(ctx context.Context, maxRetries uint64, base time.Duration, task func(ctx context.Context) error) error {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(base))

	var last error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := task(ctx)
		last = err
		if ShouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && last != nil && ctx.Err() != nil {
		// report what the task said, not only that the context ended
		return errors.Join(ctx.Err(), last)
	}
	return err
}

// ShouldRetry reports whether err looks transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	// the caller gave up
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
