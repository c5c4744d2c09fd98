package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/errors"
)

// WithTimeout runs fn under a derived context that expires after timeout
// and waits for it to return, so fn never outlives the call. A failure
// after expiry is reported as apperrors.ErrTimeout; cancellation of the
// parent is reported as the parent's error.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(timeoutCtx)
	if err == nil || timeoutCtx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
	}
	return fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
}
