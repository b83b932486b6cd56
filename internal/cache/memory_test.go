package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetExpire(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	stats := c.Stats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryCache_GetOrSet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	calls := 0
	load := func() ([]byte, error) {
		calls++
		return []byte("Aisha"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(ctx, "profile:u1", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "Aisha", string(v))
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := c.GetOrSet(ctx, "profile:u2", time.Minute, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, err = c.Get(ctx, "profile:u2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "missing"))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ClearAndCloseTwice(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, int64(0), c.Stats(ctx).Entries)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
