package aicache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/cache"
)

type embeddingPayload struct {
	Vector []float64 `json:"vector"`
}

func newTestAICache(t *testing.T) *AICache {
	t.Helper()
	c, err := cache.New(cache.NewMemoryStore(), cache.DefaultCompressionConfig())
	require.NoError(t, err)
	return New(c)
}

func TestAICache_SetGet_RoundTrip(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	in := embeddingPayload{Vector: []float64{0.1, 0.2, 0.3}}
	require.NoError(t, a.Set(ctx, SegmentEmbedding, "opp-1", in))

	var out embeddingPayload
	found, err := a.Get(ctx, SegmentEmbedding, "opp-1", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in.Vector, out.Vector)
}

func TestAICache_Get_Miss(t *testing.T) {
	a := newTestAICache(t)
	var out embeddingPayload
	found, err := a.Get(context.Background(), SegmentEmbedding, "nope", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAICache_VersionMismatchIsTreatedAsMiss(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, SegmentGeneral, "key", embeddingPayload{Vector: []float64{1}}))

	var out embeddingPayload
	found, err := a.Get(ctx, SegmentGeneral, "key", &out)
	require.NoError(t, err)
	require.True(t, found)

	// Simulate a schema migration: write a newer envelope version directly.
	encoded, err := json.Marshal(versionedEnvelope{Version: envelopeVersion + 1, Payload: json.RawMessage(`{"vector":[1]}`)})
	require.NoError(t, err)
	require.NoError(t, a.cache.Set(ctx, namespacedKey(SegmentGeneral, "key"), encoded, DefaultTTL(SegmentGeneral)))

	found, err = a.Get(ctx, SegmentGeneral, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDefaultTTL_UnknownSegmentFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, DefaultTTL(SegmentGeneral), DefaultTTL(Segment("unknown")))
}
