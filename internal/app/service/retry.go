package service

import (
	"context"
	"time"

	"github.com/sifan077/linkpulse/internal/app/apperror"
)

const defaultRetryBackoff = 50 * time.Millisecond

// retryOnce runs op and, if it fails with a transient error, runs it once more
// after backoff. Non-transient errors are returned immediately.
func retryOnce[T any](ctx context.Context, backoff time.Duration, op func(context.Context) (T, error)) (T, error) {
	v, err := op(ctx)
	if err == nil || !apperror.IsTransient(err) || ctx.Err() != nil {
		return v, err
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return v, err
	case <-timer.C:
	}
	return op(ctx)
}
