package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *FileCache {
	t.Helper()

	c, err := NewFileCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	return c
}

func TestFileCache_BasicOperations(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ngram|Ramya", []byte("vector"), 0))

	got, err := c.Get(ctx, "ngram|Ramya")
	require.NoError(t, err)
	assert.Equal(t, []byte("vector"), got)

	require.NoError(t, c.Delete(ctx, "ngram|Ramya"))

	_, err = c.Get(ctx, "ngram|Ramya")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, c.Delete(ctx, "never-set"))
}

func TestFileCache_TTL(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	start := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "long", []byte("b"), time.Hour*48))

	c.now = func() time.Time { return start.Add(2 * time.Minute) }

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)

	got, err := c.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestFileCache_Cleanup(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	start := time.Now()
	c.now = func() time.Time { return start }

	require.NoError(t, c.Set(ctx, "expired", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "fresh", []byte("b"), time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(c.Directory(), "junk"+entrySuffix), []byte("{"), 0600))

	c.now = func() time.Time { return start.Add(time.Minute) }

	removed, err := c.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEntries)
}

func TestFileCache_StatsAndClear(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.Positive(t, stats.TotalSize)

	require.NoError(t, c.Clear(ctx))

	stats, err = c.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
	assert.Zero(t, stats.Hits)
}

func TestFileCache_CanceledContext(t *testing.T) {
	c := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), context.Canceled)
}

func TestFileCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	done := make(chan struct{})

	for i := range 8 {
		go func(n int) {
			defer func() { done <- struct{}{} }()

			key := string(rune('a' + n))
			assert.NoError(t, c.Set(ctx, key, []byte(key), 0))

			got, err := c.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, []byte(key), got)
		}(i)
	}

	for range 8 {
		<-done
	}
}
