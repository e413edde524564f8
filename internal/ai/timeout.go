package ai

import (
	"context"
	"errors"
	"time"

	"cognichat/models"
)

// withTimeout runs fn under a deadline and reports a stall as *models.TimeoutError.
// Cancellation by the caller is passed through unchanged.
func withTimeout(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded) {
		return &models.TimeoutError{Op: op, Timeout: timeout, Err: err}
	}
	return err
}
