package ingestion

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/events"
	"github.com/aristath/arbitrage-platform/internal/objectstore"
)

type streamBuffer struct {
	mu        sync.Mutex
	pending   []Event
	lastFlush time.Time
}

// Manager batches events per named stream and flushes them as
// partitioned objects, falling back to a direct write per event when
// the streaming endpoint is unavailable.
type Manager struct {
	cfg        Config
	store      objectstore.Store
	policies   map[StreamName]StreamPolicy
	log        zerolog.Logger
	eventMgr   *events.Manager

	mu      sync.Mutex
	buffers map[StreamName]*streamBuffer
	metrics Metrics
}

// New builds a Manager. eventMgr may be nil, in which case no events
// are forwarded on flush.
func New(cfg Config, store objectstore.Store, eventMgr *events.Manager, log zerolog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		policies: defaultPolicies(),
		log:      log.With().Str("service", "ingestion_pipeline").Logger(),
		eventMgr: eventMgr,
		buffers:  make(map[StreamName]*streamBuffer),
		metrics:  Metrics{PerStream: make(map[StreamName]StreamCounters)},
	}, nil
}

func (m *Manager) bufferFor(stream StreamName) *streamBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[stream]
	if !ok {
		b = &streamBuffer{lastFlush: time.Now()}
		m.buffers[stream] = b
	}
	return b
}

func (m *Manager) policyFor(stream StreamName) StreamPolicy {
	if p, ok := m.policies[stream]; ok {
		return p
	}
	return m.policies[StreamCustom]
}

func (m *Manager) recordCounter(stream StreamName, mutate func(*StreamCounters)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.metrics.PerStream[stream]
	mutate(&c)
	m.metrics.PerStream[stream] = c
}

// Submit enqueues event for its stream, flushing immediately if the
// streaming endpoint is unavailable (direct write) or the batch has
// reached BatchSize or FlushInterval has elapsed.
func (m *Manager) Submit(ctx context.Context, evt Event) error {
	m.recordCounter(evt.Stream, func(c *StreamCounters) { c.Submitted++ })

	if !m.cfg.StreamingEndpointAvailable {
		return m.directWrite(ctx, evt)
	}

	buf := m.bufferFor(evt.Stream)
	buf.mu.Lock()
	buf.pending = append(buf.pending, evt)
	shouldFlush := len(buf.pending) >= m.cfg.BatchSize || time.Since(buf.lastFlush) >= m.cfg.FlushInterval
	var batch []Event
	if shouldFlush {
		batch = buf.pending
		buf.pending = nil
		buf.lastFlush = time.Now()
	}
	buf.mu.Unlock()

	if batch != nil {
		return m.flush(ctx, evt.Stream, batch, false)
	}
	return nil
}

// Flush forces a flush of stream's pending batch regardless of size or
// elapsed time.
func (m *Manager) Flush(ctx context.Context, stream StreamName) error {
	buf := m.bufferFor(stream)
	buf.mu.Lock()
	batch := buf.pending
	buf.pending = nil
	buf.lastFlush = time.Now()
	buf.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return m.flush(ctx, stream, batch, false)
}

// FlushAll forces a flush of every stream with pending events.
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	streams := make([]StreamName, 0, len(m.buffers))
	for s := range m.buffers {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range streams {
		if err := m.Flush(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) directWrite(ctx context.Context, evt Event) error {
	start := time.Now()
	policy := m.policyFor(evt.Stream)
	payload, err := m.encode(policy, evt.Payload)
	if err != nil {
		m.recordCounter(evt.Stream, func(c *StreamCounters) { c.Failed++ })
		return err
	}

	key := objectstore.PartitionedKey(policy.KeyPrefix, evt.At, evt.Partition, evt.ID)
	if err := m.store.Put(ctx, key, payload); err != nil {
		m.recordCounter(evt.Stream, func(c *StreamCounters) { c.Failed++ })
		return apperr.New(apperr.ServiceUnavailable, "ingestion.Manager.directWrite", err)
	}

	m.recordCounter(evt.Stream, func(c *StreamCounters) {
		c.Flushed++
		c.FallbackWrites++
		c.AverageLatency = updateAverage(c.AverageLatency, time.Since(start))
	})
	m.emitFlushed(evt.Stream, 1, true)
	return nil
}

func (m *Manager) flush(ctx context.Context, stream StreamName, batch []Event, fallback bool) error {
	start := time.Now()
	policy := m.policyFor(stream)

	var firstErr error
	for _, evt := range batch {
		payload, err := m.encode(policy, evt.Payload)
		if err != nil {
			firstErr = err
			m.recordCounter(stream, func(c *StreamCounters) { c.Failed++ })
			continue
		}
		key := objectstore.PartitionedKey(policy.KeyPrefix, evt.At, evt.Partition, evt.ID)
		if err := m.store.Put(ctx, key, payload); err != nil {
			firstErr = apperr.New(apperr.ServiceUnavailable, "ingestion.Manager.flush", err)
			m.recordCounter(stream, func(c *StreamCounters) { c.Failed++ })
			continue
		}
		m.recordCounter(stream, func(c *StreamCounters) {
			c.Flushed++
			if fallback {
				c.FallbackWrites++
			}
			c.AverageLatency = updateAverage(c.AverageLatency, time.Since(start))
		})
	}

	m.emitFlushed(stream, len(batch), fallback)
	return firstErr
}

func (m *Manager) emitFlushed(stream StreamName, count int, fallback bool) {
	if m.eventMgr == nil {
		return
	}
	m.eventMgr.EmitTyped(events.IngestionBatchFlushed, "ingestion", &events.IngestionBatchFlushedData{
		Stream:     string(stream),
		EventCount: count,
		Fallback:   fallback,
	})
}

func (m *Manager) encode(policy StreamPolicy, payload []byte) ([]byte, error) {
	if !policy.CompressData {
		return payload, nil
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, apperr.New(apperr.Internal, "ingestion.Manager.encode", err)
	}
	if err := w.Close(); err != nil {
		return nil, apperr.New(apperr.Internal, "ingestion.Manager.encode", err)
	}
	return buf.Bytes(), nil
}

func updateAverage(prev, sample time.Duration) time.Duration {
	if prev == 0 {
		return sample
	}
	return (prev + sample) / 2
}

// GetMetrics returns a copy of the pipeline's aggregate metrics.
func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Metrics{PerStream: make(map[StreamName]StreamCounters, len(m.metrics.PerStream))}
	for k, v := range m.metrics.PerStream {
		out.PerStream[k] = v
	}
	return out
}
