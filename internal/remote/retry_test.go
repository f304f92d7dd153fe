package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()
	flaky := &TransportError{Remote: "r", Op: "putlfile", Err: errors.New("connection reset")}

	t.Run("recovers from transport errors", func(t *testing.T) {
		n := 0
		v, err := retry(ctx, 3, time.Millisecond, func() (int, error) {
			n++
			if n < 3 {
				return 0, flaky
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 3, n)
	})

	t.Run("gives up", func(t *testing.T) {
		n := 0
		_, err := retry(ctx, 2, time.Millisecond, func() (int, error) {
			n++
			return 0, flaky
		})
		require.ErrorIs(t, err, flaky)
		assert.Equal(t, 2, n)
	})

	t.Run("does not repeat rejections", func(t *testing.T) {
		n := 0
		_, err := retry(ctx, 3, time.Millisecond, func() (int, error) {
			n++
			return 0, &StoreRejectedError{Remote: "r", Hash: c1Hash, Reason: "largefile contents do not match hash"}
		})
		require.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, 1, n)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retry(ctx, 3, time.Hour, func() (int, error) { return 0, flaky })
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryCallsAtLeastOnce(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		n := 0
		_, err := Retry(context.Background(), attempts, func() (int, error) {
			n++
			return 0, errors.New("boom")
		})
		require.EqualError(t, err, "boom")
		assert.Equal(t, 1, n)
	}
}
