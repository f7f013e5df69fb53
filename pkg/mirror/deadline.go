package mirror

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("timed out")

// TimeoutError reports a labelled operation that ran past its deadline.
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return e.Label + " timed out"
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// WithDeadline runs fn with a context that expires after d. If fn fails
// because that deadline passed, the failure is reported as a *TimeoutError
// named label. Cancellation of the parent context is returned as is. fn must
// honour ctx.
func WithDeadline(ctx context.Context, label string, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := RunWithDeadline(ctx, label, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RunWithDeadline is WithDeadline for operations that produce a value.
func RunWithDeadline[T any](ctx context.Context, label string, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	dctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(dctx)
	if err == nil {
		return v, nil
	}
	if ctx.Err() == nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, &TimeoutError{Label: label, After: d}
	}
	return v, err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
