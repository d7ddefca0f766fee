package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(NewMemoryStore(), DefaultCompressionConfig())
	require.NoError(t, err)
	return c
}

func TestCache_SetGet_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	payload := []byte(strings.Repeat("x", 2000))

	require.NoError(t, c.Set(ctx, "key-1", payload, time.Minute))

	got, found, err := c.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload, got)
}

func TestCache_Get_MissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, found, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_SmallPayloadPassesThroughUncompressed(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	payload := []byte("tiny")

	require.NoError(t, c.Set(ctx, "small", payload, 0))
	got, found, err := c.Get(ctx, "small")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload, got)

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.CompressionsSkipped[SkipBelowThreshold])
}

func TestCache_Metrics_TrackCompressionSuccess(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	payload := []byte(strings.Repeat(`{"a":1}`, 500))

	require.NoError(t, c.Set(ctx, "big", payload, time.Minute))

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.Operations)
	assert.GreaterOrEqual(t, snap.CompressionsSucceeded, int64(1))
	assert.Greater(t, snap.TotalOriginalBytes, int64(0))
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "gone", []byte("value"), 0))
	require.NoError(t, c.Delete(ctx, "gone"))

	_, found, err := c.Get(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_ConcurrentGetsAreSafe(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	payload := []byte(strings.Repeat("y", 2000))
	require.NoError(t, c.Set(ctx, "concurrent", payload, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, found, err := c.Get(ctx, "concurrent")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, payload, got)
		}()
	}
	wg.Wait()
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "ephemeral", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := s.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, found)
}
