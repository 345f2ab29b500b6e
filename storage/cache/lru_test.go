package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cshub/core"
)

func TestLRU(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)

	_, err := c.Get(ctx, "sync:a")
	assert.True(t, errors.Is(err, core.ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "sync:a", "1"))
	val, err := c.Get(ctx, "sync:a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	require.NoError(t, c.Delete(ctx, "sync:a"))
	_, err = c.Get(ctx, "sync:a")
	assert.True(t, errors.Is(err, core.ErrCacheMiss))
}

func TestLRU_evicts(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, k))
	}
	_, err := c.Get(ctx, "a")
	assert.True(t, errors.Is(err, core.ErrCacheMiss), "least recently used key should be evicted")

	val, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "c", val)
}

func TestLRU_expires(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, 20*time.Millisecond)

	require.NoError(t, c.Set(ctx, "a", "1"))
	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "a")
		return errors.Is(err, core.ErrCacheMiss)
	}, time.Second, 10*time.Millisecond)
}
