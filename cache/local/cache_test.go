package local

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", "value1", 0))
	v, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ttl_key", "val", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := c.Get(ctx, "ttl_key")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.Exists(ctx, "ttl_key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", 0)
	_ = c.Del(ctx, "k")
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetNX(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "owner", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetNX_ExpiredLockCanBeRetaken(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	ok, _ := c.SetNX(ctx, "lock", "a", 5*time.Millisecond)
	require.True(t, ok)
	time.Sleep(10 * time.Millisecond)
	ok, _ = c.SetNX(ctx, "lock", "b", time.Minute)
	assert.True(t, ok)
}

func TestSetNX_SingleWinner(t *testing.T) {
	c := newTestCache(t)
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.SetNX(context.Background(), "race", "x", time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestCompareAndDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_, _ = c.SetNX(ctx, "lock", "token-a", time.Minute)

	ok, err := c.CompareAndDelete(ctx, "lock", "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "foreign token must not release")

	ok, err = c.CompareAndDelete(ctx, "lock", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, _ := c.Exists(ctx, "lock")
	assert.False(t, exists)
}

func TestZSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.ZAdd(ctx, "board", 100, "1")
	_ = c.ZAdd(ctx, "board", 300, "2")
	_ = c.ZAdd(ctx, "board", 200, "3")
	_ = c.ZAdd(ctx, "board", 50, "2") // update moves member down

	members, err := c.ZRevRange(ctx, "board", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, members)

	top, err := c.ZRevRange(ctx, "board", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, top)

	score, err := c.ZScore(ctx, "board", "1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)

	rank, err := c.ZRevRank(ctx, "board", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	_, err = c.ZScore(ctx, "board", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
