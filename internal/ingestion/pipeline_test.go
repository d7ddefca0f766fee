package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/events"
	"github.com/aristath/arbitrage-platform/internal/objectstore"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, objectstore.Store) {
	t.Helper()
	store, err := objectstore.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	mgr, err := New(cfg, store, events.NewManager(events.NewBus(), zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	return mgr, store
}

func TestManager_FlushesOnBatchSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	cfg.FlushInterval = time.Hour
	mgr, _ := newTestManager(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := mgr.Submit(ctx, Event{ID: "evt", Stream: StreamMarketData, Payload: []byte("{}"), At: time.Now()})
		require.NoError(t, err)
	}

	metrics := mgr.GetMetrics()
	assert.Equal(t, uint64(3), metrics.PerStream[StreamMarketData].Flushed)
}

func TestManager_FlushForcesPendingBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 100
	cfg.FlushInterval = time.Hour
	mgr, _ := newTestManager(t, cfg)

	ctx := context.Background()
	require.NoError(t, mgr.Submit(ctx, Event{ID: "evt-1", Stream: StreamAudit, Payload: []byte("{}"), At: time.Now()}))

	assert.Equal(t, uint64(0), mgr.GetMetrics().PerStream[StreamAudit].Flushed)
	require.NoError(t, mgr.Flush(ctx, StreamAudit))
	assert.Equal(t, uint64(1), mgr.GetMetrics().PerStream[StreamAudit].Flushed)
}

func TestManager_FallsBackToDirectWriteWhenStreamingUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StreamingEndpointAvailable = false
	mgr, store := newTestManager(t, cfg)

	ctx := context.Background()
	at := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, mgr.Submit(ctx, Event{ID: "evt-x", Stream: StreamMarketData, Payload: []byte("{}"), At: at}))

	metrics := mgr.GetMetrics()
	assert.Equal(t, uint64(1), metrics.PerStream[StreamMarketData].FallbackWrites)

	key := objectstore.PartitionedKey("market_data", at, "", "evt-x")
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManager_WritesPartitionedKeyWithPartition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	mgr, store := newTestManager(t, cfg)

	ctx := context.Background()
	at := time.Date(2026, 7, 29, 11, 0, 0, 0, time.UTC)
	require.NoError(t, mgr.Submit(ctx, Event{
		ID: "evt-y", Stream: StreamMarketData, Partition: "BTCUSDT", Payload: []byte(`{"p":1}`), At: at,
	}))

	key := objectstore.PartitionedKey("market_data", at, "BTCUSDT", "evt-y")
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManager_AuditStreamIsNotCompressed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	mgr, store := newTestManager(t, cfg)

	ctx := context.Background()
	at := time.Now()
	payload := []byte(`{"raw":"audit-entry"}`)
	require.NoError(t, mgr.Submit(ctx, Event{ID: "evt-audit", Stream: StreamAudit, Payload: payload, At: at}))

	key := objectstore.PartitionedKey("audit", at, "", "evt-audit")
	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestManager_MarketDataStreamIsCompressed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	mgr, store := newTestManager(t, cfg)

	ctx := context.Background()
	at := time.Now()
	payload := []byte(`{"raw":"market-entry"}`)
	require.NoError(t, mgr.Submit(ctx, Event{ID: "evt-md", Stream: StreamMarketData, Payload: payload, At: at}))

	key := objectstore.PartitionedKey("market_data", at, "", "evt-md")
	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEqual(t, payload, data)
}

func TestManager_FlushAllFlushesEveryStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 100
	cfg.FlushInterval = time.Hour
	mgr, _ := newTestManager(t, cfg)

	ctx := context.Background()
	require.NoError(t, mgr.Submit(ctx, Event{ID: "a", Stream: StreamMarketData, Payload: []byte("{}"), At: time.Now()}))
	require.NoError(t, mgr.Submit(ctx, Event{ID: "b", Stream: StreamAudit, Payload: []byte("{}"), At: time.Now()}))

	require.NoError(t, mgr.FlushAll(ctx))

	metrics := mgr.GetMetrics()
	assert.Equal(t, uint64(1), metrics.PerStream[StreamMarketData].Flushed)
	assert.Equal(t, uint64(1), metrics.PerStream[StreamAudit].Flushed)
}
