package txn

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/objectstore"
)

func newTestCoordinator(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "txn.db"),
		Profile: database.ProfileStandard,
		Name:    "txn_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE widgets (id TEXT PRIMARY KEY, value TEXT)`)
	require.NoError(t, err)

	store, err := objectstore.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	coord, err := New(cfg, db, store, zerolog.Nop())
	require.NoError(t, err)
	return coord
}

func TestCoordinator_BeginExecuteCommit(t *testing.T) {
	coord := newTestCoordinator(t, DefaultConfig())
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)

	require.NoError(t, coord.Execute(ctx, txnID, Operation{
		Kind: OpSQL, ResourceKey: "widgets:1",
		SQL: "INSERT INTO widgets (id, value) VALUES (?, ?)", SQLArgs: []interface{}{"1", "a"},
	}))

	require.NoError(t, coord.Commit(ctx, txnID))

	state, ok := coord.State(txnID)
	require.True(t, ok)
	assert.Equal(t, Committed, state)
	assert.Equal(t, uint64(1), coord.Stats().Committed)
}

func TestCoordinator_RollbackDiscardsBufferedOps(t *testing.T) {
	coord := newTestCoordinator(t, DefaultConfig())
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)

	require.NoError(t, coord.Execute(ctx, txnID, Operation{
		Kind: OpSQL, ResourceKey: "widgets:2",
		SQL: "INSERT INTO widgets (id, value) VALUES (?, ?)", SQLArgs: []interface{}{"2", "b"},
	}))

	require.NoError(t, coord.Rollback(ctx, txnID, "user requested"))

	state, _ := coord.State(txnID)
	assert.Equal(t, RolledBack, state)
	assert.Empty(t, coord.LockedResources())
}

func TestCoordinator_DoubleRollbackFails(t *testing.T) {
	coord := newTestCoordinator(t, DefaultConfig())
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, coord.Rollback(ctx, txnID, "first"))

	err = coord.Rollback(ctx, txnID, "second")
	assert.Error(t, err)
	assert.Equal(t, uint64(1), coord.Stats().RolledBack)
}

func TestCoordinator_RejectsOverCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTransactions = 1
	coord := newTestCoordinator(t, cfg)
	ctx := context.Background()

	_, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)

	_, err = coord.Begin(ctx, ReadCommitted)
	assert.Error(t, err)
}

func TestCoordinator_ResourceLockConflict(t *testing.T) {
	coord := newTestCoordinator(t, DefaultConfig())
	ctx := context.Background()

	txnA, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)
	txnB, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)

	require.NoError(t, coord.Execute(ctx, txnA, Operation{Kind: OpObject, ResourceKey: "shared", ObjectKey: "k"}))

	err = coord.Execute(ctx, txnB, Operation{Kind: OpObject, ResourceKey: "shared", ObjectKey: "k"})
	assert.Error(t, err)
}

func TestCoordinator_ExpiredTransactionRejectsFurtherOps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransactionTimeout = time.Millisecond
	coord := newTestCoordinator(t, cfg)
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	err = coord.Execute(ctx, txnID, Operation{Kind: OpObject, ResourceKey: "r", ObjectKey: "k"})
	assert.Error(t, err)

	state, _ := coord.State(txnID)
	assert.Equal(t, TimedOut, state)
}

func TestCoordinator_CleanupExpiredReleasesLocksAndMarksTimedOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransactionTimeout = time.Millisecond
	coord := newTestCoordinator(t, cfg)
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, coord.Execute(ctx, txnID, Operation{Kind: OpObject, ResourceKey: "r1", ObjectKey: "k"}))

	time.Sleep(5 * time.Millisecond)

	n, err := coord.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	state, _ := coord.State(txnID)
	assert.Equal(t, TimedOut, state)
	assert.Empty(t, coord.LockedResources())
}

func TestCoordinator_FailedOperationDoesNotIncrementCommitted(t *testing.T) {
	coord := newTestCoordinator(t, DefaultConfig())
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)

	require.NoError(t, coord.Execute(ctx, txnID, Operation{
		Kind: OpSQL, ResourceKey: "widgets:bad",
		SQL: "INSERT INTO nonexistent_table (id) VALUES (?)", SQLArgs: []interface{}{"x"},
	}))

	err = coord.Commit(ctx, txnID)
	assert.Error(t, err)

	state, _ := coord.State(txnID)
	assert.Equal(t, Failed, state)
	assert.Equal(t, uint64(0), coord.Stats().Committed)
}

func TestCoordinator_ObjectOperationAppliedOnCommit(t *testing.T) {
	coord := newTestCoordinator(t, DefaultConfig())
	ctx := context.Background()

	txnID, err := coord.Begin(ctx, ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, coord.Execute(ctx, txnID, Operation{
		Kind: OpObject, ResourceKey: "obj:1", ObjectKey: "obj-1.json", ObjectData: []byte(`{}`),
	}))

	exists, err := coord.store.Exists(ctx, "obj-1.json")
	require.NoError(t, err)
	assert.False(t, exists, "object write must be buffered, not applied, before commit")

	require.NoError(t, coord.Commit(ctx, txnID))

	exists, err = coord.store.Exists(ctx, "obj-1.json")
	require.NoError(t, err)
	assert.True(t, exists)
}
