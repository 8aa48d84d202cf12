package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, interval time.Duration) (*MemoryLimiter, *time.Time) {
	l := NewMemoryLimiter(limit, interval)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("admits up to the limit", func(t *testing.T) {
		l, _ := newTestLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			res, err := l.Allow(ctx, "alice")
			require.NoError(t, err)
			require.True(t, res.Allowed)
			require.Equal(t, 2-i, res.Remaining)
		}

		res, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.False(t, res.Allowed)
		require.Equal(t, 0, res.Remaining)
		require.Equal(t, time.Minute, res.RetryAfter)
	})

	t.Run("window resets after the interval", func(t *testing.T) {
		l, now := newTestLimiter(2, time.Minute)

		for i := 0; i < 2; i++ {
			res, err := l.Allow(ctx, "alice")
			require.NoError(t, err)
			require.True(t, res.Allowed)
		}

		res, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.False(t, res.Allowed)

		*now = now.Add(time.Minute)

		res, err = l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 1, res.Remaining)
	})

	t.Run("retry after shrinks as the window ages", func(t *testing.T) {
		l, now := newTestLimiter(1, time.Minute)

		_, err := l.Allow(ctx, "alice")
		require.NoError(t, err)

		*now = now.Add(40 * time.Second)

		res, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.False(t, res.Allowed)
		require.Equal(t, 20*time.Second, res.RetryAfter)
	})

	t.Run("keys are independent", func(t *testing.T) {
		l, _ := newTestLimiter(1, time.Minute)

		res, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.True(t, res.Allowed)

		res, err = l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.False(t, res.Allowed)

		res, err = l.Allow(ctx, "bob")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	})

	t.Run("sweep reclaims elapsed windows only", func(t *testing.T) {
		l, now := newTestLimiter(5, time.Minute)

		_, err := l.Allow(ctx, "old")
		require.NoError(t, err)

		*now = now.Add(2 * time.Minute)

		_, err = l.Allow(ctx, "fresh")
		require.NoError(t, err)

		require.Equal(t, 1, l.Sweep())
		require.Equal(t, 0, l.Sweep())
	})

	t.Run("concurrent checks never exceed the limit", func(t *testing.T) {
		l := NewMemoryLimiter(10, time.Minute)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := l.Allow(ctx, "alice")
				require.NoError(t, err)
				if res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 10, allowed)
	})
}
