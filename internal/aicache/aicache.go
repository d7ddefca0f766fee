// Package aicache is a semantic wrapper around the compression cache (C1)
// with a fixed enumeration of AI-artifact segments and per-segment TTLs.
package aicache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/cache"
)

// Segment is a named category of AI-derived cache entries.
type Segment string

const (
	SegmentEmbedding      Segment = "embedding"
	SegmentRoutingDecision Segment = "routing_decision"
	SegmentPersonalization Segment = "personalization"
	SegmentSimilarity      Segment = "similarity"
	SegmentGeneral         Segment = "general"
)

// defaultTTLs mirrors the per-segment default lifetimes: embeddings and
// routing decisions are comparatively cheap to recompute and change with
// the model catalogue, so they get short TTLs; personalization rankings
// depend on slower-moving interaction history.
var defaultTTLs = map[Segment]time.Duration{
	SegmentEmbedding:       1 * time.Hour,
	SegmentRoutingDecision: 15 * time.Minute,
	SegmentPersonalization: 6 * time.Hour,
	SegmentSimilarity:      30 * time.Minute,
	SegmentGeneral:         10 * time.Minute,
}

// envelopeVersion is bumped whenever the wire shape of a cached payload
// changes incompatibly; a version mismatch on read is treated as a miss
// rather than a deserialization error.
const envelopeVersion = 1

type versionedEnvelope struct {
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// AICache is the typed front for C1 used by the AI coordinator and its
// engines.
type AICache struct {
	cache *cache.Cache
}

// New wraps c.
func New(c *cache.Cache) *AICache {
	return &AICache{cache: c}
}

// DefaultTTL returns the configured TTL for a segment.
func DefaultTTL(segment Segment) time.Duration {
	if ttl, ok := defaultTTLs[segment]; ok {
		return ttl
	}
	return defaultTTLs[SegmentGeneral]
}

func namespacedKey(segment Segment, key string) string {
	return string(segment) + ":" + key
}

// Set stores value under (segment, key) with the segment's default TTL.
func (a *AICache) Set(ctx context.Context, segment Segment, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return apperr.New(apperr.SerializationError, "aicache.AICache.Set", err)
	}

	envelope := versionedEnvelope{Version: envelopeVersion, Payload: payload}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return apperr.New(apperr.SerializationError, "aicache.AICache.Set", err)
	}

	return a.cache.Set(ctx, namespacedKey(segment, key), encoded, DefaultTTL(segment))
}

// Get retrieves and decodes the value stored at (segment, key) into out.
// A version mismatch (from a migrated envelope format) is treated as a
// miss, not an error.
func (a *AICache) Get(ctx context.Context, segment Segment, key string, out interface{}) (bool, error) {
	raw, found, err := a.cache.Get(ctx, namespacedKey(segment, key))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	var envelope versionedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false, nil
	}
	if envelope.Version != envelopeVersion {
		return false, nil
	}
	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		return false, apperr.New(apperr.SerializationError, "aicache.AICache.Get", err)
	}
	return true, nil
}

// Delete removes the entry at (segment, key).
func (a *AICache) Delete(ctx context.Context, segment Segment, key string) error {
	return a.cache.Delete(ctx, namespacedKey(segment, key))
}
