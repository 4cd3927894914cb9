// Package retry runs an operation a bounded number of times.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Options configures Do.
type Options struct {
	Tries int
	Sleep time.Duration
	// OnError is called after every failed attempt, starting at 0.
	OnError func(attempt int, err error)
}

// Do calls fn until it succeeds or Tries attempts have failed, sleeping
// between attempts. The last error is returned wrapped.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	tries := opts.Tries
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for i := 0; i < tries; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if opts.OnError != nil {
			opts.OnError(i, err)
		}
		if i == tries-1 {
			break
		}
		if opts.Sleep > 0 {
			timer := time.NewTimer(opts.Sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", tries, lastErr)
}
