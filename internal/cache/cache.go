package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Cache is the keyed store with compression middleware described in the
// design: Set transparently compresses large, compressible payloads behind
// a checksummed envelope; Get verifies and reverses that transform.
// Concurrent identical misses are collapsed via singleflight.
type Cache struct {
	store  Store
	cfg    CompressionConfig
	group  singleflight.Group
	mu     sync.Mutex
	metrics Metrics
}

// New builds a Cache over store using cfg for the compression middleware.
func New(store Store, cfg CompressionConfig) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cache{
		store: store,
		cfg:   cfg,
		metrics: Metrics{
			CompressionsSkipped: make(map[SkipReason]int64),
		},
	}, nil
}

// Set stores value under key, applying the compression middleware.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()

	result, err := compress(c.cfg, value)
	if err != nil {
		c.recordCompressionFailed(time.Since(start))
		return err
	}

	payload := value
	if result.envelope != nil {
		encoded, err := encodeEnvelope(result.envelope)
		if err != nil {
			c.recordCompressionFailed(time.Since(start))
			return apperr.New(apperr.SerializationError, "cache.Cache.Set", err)
		}
		payload = encoded
	}

	if err := c.store.Set(ctx, key, payload, ttl); err != nil {
		return err
	}

	c.recordSet(result, len(value), time.Since(start))
	return nil
}

// Get retrieves key, transparently reversing the compression middleware.
// The boolean return is false on a cache miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, found, err := c.singleflightGet(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	c.mu.Lock()
	c.metrics.Operations++
	c.mu.Unlock()

	env, err := decodeEnvelope(raw)
	if err != nil {
		// Not an envelope: passthrough.
		c.mu.Lock()
		c.metrics.Passthroughs++
		c.mu.Unlock()
		return raw, true, nil
	}

	value, err := decompress(env)
	if err != nil {
		c.mu.Lock()
		c.metrics.DecompressionsFailed++
		c.mu.Unlock()
		return nil, false, err
	}

	c.mu.Lock()
	c.metrics.DecompressionsSucceeded++
	c.mu.Unlock()
	return value, true, nil
}

func (c *Cache) singleflightGet(ctx context.Context, key string) ([]byte, bool, error) {
	type result struct {
		value []byte
		found bool
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, found, err := c.store.Get(ctx, key)
		return result{value: value, found: found}, err
	})
	if err != nil {
		return nil, false, apperr.New(apperr.Internal, "cache.Cache.Get", err)
	}
	r := v.(result)
	return r.value, r.found, nil
}

// Delete removes key from the underlying store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func (c *Cache) recordCompressionFailed(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.Operations++
	c.metrics.CompressionsFailed++
	c.metrics.TotalProcessingTime += elapsed
}

func (c *Cache) recordSet(result compressResult, originalSize int, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.Operations++
	c.metrics.TotalProcessingTime += elapsed

	if result.envelope == nil {
		c.metrics.CompressionsSkipped[result.skipReason]++
		return
	}

	c.metrics.CompressionsSucceeded++
	c.metrics.TotalOriginalBytes += int64(originalSize)
	c.metrics.TotalCompressedBytes += int64(len(result.envelope.CompressedData))
}

// Snapshot returns an immutable copy of the current metrics.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	skipped := make(map[SkipReason]int64, len(c.metrics.CompressionsSkipped))
	for k, v := range c.metrics.CompressionsSkipped {
		skipped[k] = v
	}

	snap := Snapshot{
		Operations:              c.metrics.Operations,
		CompressionsSucceeded:    c.metrics.CompressionsSucceeded,
		CompressionsFailed:       c.metrics.CompressionsFailed,
		CompressionsSkipped:      skipped,
		Passthroughs:             c.metrics.Passthroughs,
		DecompressionsSucceeded:  c.metrics.DecompressionsSucceeded,
		DecompressionsFailed:     c.metrics.DecompressionsFailed,
		TotalOriginalBytes:       c.metrics.TotalOriginalBytes,
		TotalCompressedBytes:     c.metrics.TotalCompressedBytes,
	}

	compressAttempts := c.metrics.CompressionsSucceeded
	if compressAttempts > 0 {
		snap.AverageProcessingTime = c.metrics.TotalProcessingTime / time.Duration(c.metrics.Operations)
	}
	if c.metrics.TotalOriginalBytes > 0 {
		snap.AggregateRatio = float64(c.metrics.TotalCompressedBytes) / float64(c.metrics.TotalOriginalBytes)
		if compressAttempts > 0 {
			snap.AverageRatio = snap.AggregateRatio
		}
	}
	return snap
}
