package cleanup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
	"github.com/aristath/arbitrage-platform/internal/repository"
	"github.com/aristath/arbitrage-platform/internal/txn"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cleanup_test.db"),
		Profile: database.ProfileStandard,
		Name:    "cleanup_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(repository.Schema)
	require.NoError(t, err)
	return db
}

func TestRetentionJob_PrunesBothTrailsOlderThanRetention(t *testing.T) {
	db := newTestDB(t)
	log := zerolog.Nop()
	txLog := repository.NewTransactionLogRepository(db, log)
	snapshots := repository.NewFundSnapshotRepository(db, log)
	ctx := context.Background()

	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now()

	require.NoError(t, txLog.Append(ctx, txn.LogEntry{TransactionID: "t1", At: old, Kind: txn.OpSQL, ResourceKey: "r1"}))
	require.NoError(t, txLog.Append(ctx, txn.LogEntry{TransactionID: "t2", At: recent, Kind: txn.OpSQL, ResourceKey: "r2"}))
	require.NoError(t, snapshots.RecordSnapshot(ctx, fundmonitor.Snapshot{UserID: "u1", Venue: "binance", At: old}))
	require.NoError(t, snapshots.RecordSnapshot(ctx, fundmonitor.Snapshot{UserID: "u1", Venue: "binance", At: recent}))

	job := NewRetentionJob(txLog, snapshots, 24*time.Hour, log)
	require.Equal(t, "retention", job.Name())
	require.NoError(t, job.Run())

	entries, err := txLog.ListByTransaction(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, entries)

	entries, err = txLog.ListByTransaction(ctx, "t2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
