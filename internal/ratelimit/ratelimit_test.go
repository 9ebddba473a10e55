package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("separate bucket per host", func(t *testing.T) {
		l := NewHostLimiter(100, 1)

		require.NoError(t, l.Wait(ctx, "https://shop-a.example/p/1"))
		require.NoError(t, l.Wait(ctx, "https://SHOP-A.example/p/2"))
		require.NoError(t, l.Wait(ctx, "https://shop-b.example/p/1"))

		assert.Equal(t, 2, l.Hosts())
	})

	t.Run("invalid url", func(t *testing.T) {
		l := NewHostLimiter(1, 1)

		err := l.Wait(ctx, "/relative/path")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing host")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		l := NewHostLimiter(0.1, 1)
		require.NoError(t, l.Wait(ctx, "https://slow.example/"))

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := l.Wait(cctx, "https://slow.example/")
		assert.Error(t, err)
	})
}
