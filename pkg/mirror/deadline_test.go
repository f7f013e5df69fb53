package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDeadlineTimesOut(t *testing.T) {
	err := WithDeadline(context.Background(), "navigate", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.EqualError(t, err, "navigate timed out")
	assert.True(t, errors.Is(err, ErrTimeout))

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 10*time.Millisecond, te.After)
}

func TestWithDeadlinePassesThroughOwnError(t *testing.T) {
	boom := errors.New("boom")
	err := WithDeadline(context.Background(), "navigate", time.Second, func(context.Context) error { return boom })
	assert.Same(t, boom, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestWithDeadlineParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithDeadline(ctx, "navigate", time.Second, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRunWithDeadlineValue(t *testing.T) {
	v, err := RunWithDeadline(context.Background(), "captureScreenshot", time.Second, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
