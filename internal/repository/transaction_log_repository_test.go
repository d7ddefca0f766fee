package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/txn"
)

func TestTransactionLogRepository_AppendAndListByTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionLogRepository(db, testLogger())
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Append(ctx, txn.LogEntry{
		TransactionID: "txn-1", At: base, Kind: txn.OpSQL, ResourceKey: "res-a", Retry: false,
	}))
	require.NoError(t, repo.Append(ctx, txn.LogEntry{
		TransactionID: "txn-1", At: base.Add(time.Second), Kind: txn.OpObject, ResourceKey: "res-b",
		Retry: true, Err: errors.New("transient failure"),
	}))
	require.NoError(t, repo.Append(ctx, txn.LogEntry{
		TransactionID: "txn-2", At: base, Kind: txn.OpSQL, ResourceKey: "res-c",
	}))

	entries, err := repo.ListByTransaction(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "res-a", entries[0].ResourceKey)
	assert.False(t, entries[0].Retry)
	assert.Nil(t, entries[0].Err)
	assert.Equal(t, "res-b", entries[1].ResourceKey)
	assert.True(t, entries[1].Retry)
	require.Error(t, entries[1].Err)
	assert.Equal(t, "transient failure", entries[1].Err.Error())
}

func TestTransactionLogRepository_PruneDeletesOlderEntries(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionLogRepository(db, testLogger())
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	recent := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Append(ctx, txn.LogEntry{TransactionID: "txn-1", At: old, Kind: txn.OpSQL, ResourceKey: "res-a"}))
	require.NoError(t, repo.Append(ctx, txn.LogEntry{TransactionID: "txn-1", At: recent, Kind: txn.OpSQL, ResourceKey: "res-b"}))

	require.NoError(t, repo.Prune(ctx, time.Now().Add(-24*time.Hour)))

	entries, err := repo.ListByTransaction(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "res-b", entries[0].ResourceKey)
}
