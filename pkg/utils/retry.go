package utils

import (
	"context"
	"time"
)

type RetryOptions struct {
	// MaxRetry is the total number of calls made before giving up.
	MaxRetry  int
	BaseDelay time.Duration
	// Sleep waits between calls. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// ShouldRetry reports whether err is worth another call. Nil retries everything.
	ShouldRetry func(err error) bool
}

// Retry calls fn until it succeeds or MaxRetry calls have failed.
// Before the k-th retry it waits k*BaseDelay. The last error is returned.
func Retry[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	maxRetry := opts.MaxRetry
	if maxRetry < 1 {
		maxRetry = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var (
		res T
		err error
	)
	for attempt := 1; attempt <= maxRetry; attempt++ {
		if attempt > 1 {
			if serr := sleep(ctx, time.Duration(attempt-1)*opts.BaseDelay); serr != nil {
				return res, serr
			}
		}
		res, err = fn(ctx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, err
		}
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return res, err
		}
	}
	return res, err
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
