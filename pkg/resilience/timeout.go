package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
)

// WithTimeout runs fn under a derived deadline. When the deadline passes
// first the result wraps errors.ErrTimeout; fn keeps running in the
// background until it observes its cancelled context.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
	}
}
