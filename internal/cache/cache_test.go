package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tag struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

func TestLRURoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(8, time.Minute)

	var got []tag
	ok, err := c.Get(ctx, TrendingTagsKey, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []tag{{"go", 3}, {"web", 1}}
	require.NoError(t, c.Set(ctx, TrendingTagsKey, want))

	ok, err = c.Get(ctx, TrendingTagsKey, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, TrendingTagsKey, "missing"))
	ok, err = c.Get(ctx, TrendingTagsKey, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(8, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", 1))

	assert.Eventually(t, func() bool {
		var v int
		ok, _ := c.Get(ctx, "k", &v)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLRUEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)
	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))
	require.NoError(t, c.Set(ctx, "c", 3))

	var v int
	ok, _ := c.Get(ctx, "a", &v)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, "c", &v)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
