package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
)

func TestFundSnapshotRepository_RecordAndHistoryRoundTrips(t *testing.T) {
	db := newTestDB(t)
	repo := NewFundSnapshotRepository(db, testLogger())
	ctx := context.Background()

	older := time.Now().Add(-time.Hour).Truncate(time.Second)
	newer := time.Now().Truncate(time.Second)

	snapOlder := fundmonitor.Snapshot{
		UserID: "user-1", Venue: "binance",
		Balances: map[string]fundmonitor.Balance{
			"BTC": {Asset: "BTC", Free: 0.5, Used: 0, Total: 0.5, USDValue: 30000},
		},
		TotalUSD: 30000, At: older,
	}
	snapNewer := fundmonitor.Snapshot{
		UserID: "user-1", Venue: "binance",
		Balances: map[string]fundmonitor.Balance{
			"BTC": {Asset: "BTC", Free: 0.6, Used: 0, Total: 0.6, USDValue: 36000},
		},
		TotalUSD: 36000, At: newer,
	}
	require.NoError(t, repo.RecordSnapshot(ctx, snapOlder))
	require.NoError(t, repo.RecordSnapshot(ctx, snapNewer))
	require.NoError(t, repo.RecordSnapshot(ctx, fundmonitor.Snapshot{
		UserID: "user-2", Venue: "binance", Balances: map[string]fundmonitor.Balance{}, TotalUSD: 0, At: newer,
	}))

	history, err := repo.History(ctx, "user-1", "binance", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 36000.0, history[0].TotalUSD)
	assert.Equal(t, 0.6, history[0].Balances["BTC"].Free)
	assert.Equal(t, 30000.0, history[1].TotalUSD)
}

func TestFundSnapshotRepository_HistoryRespectsLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewFundSnapshotRepository(db, testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordSnapshot(ctx, fundmonitor.Snapshot{
			UserID: "user-1", Venue: "binance", Balances: map[string]fundmonitor.Balance{},
			TotalUSD: float64(i), At: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	history, err := repo.History(ctx, "user-1", "binance", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestFundSnapshotRepository_PruneDeletesOlderEntries(t *testing.T) {
	db := newTestDB(t)
	repo := NewFundSnapshotRepository(db, testLogger())
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	recent := time.Now().Truncate(time.Second)
	require.NoError(t, repo.RecordSnapshot(ctx, fundmonitor.Snapshot{
		UserID: "user-1", Venue: "binance", Balances: map[string]fundmonitor.Balance{}, At: old,
	}))
	require.NoError(t, repo.RecordSnapshot(ctx, fundmonitor.Snapshot{
		UserID: "user-1", Venue: "binance", Balances: map[string]fundmonitor.Balance{}, At: recent,
	}))

	require.NoError(t, repo.Prune(ctx, time.Now().Add(-24*time.Hour)))

	history, err := repo.History(ctx, "user-1", "binance", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
