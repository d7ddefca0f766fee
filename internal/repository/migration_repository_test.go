package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/migration"
)

func TestMigrationRepository_UpsertAndGetRoundTrips(t *testing.T) {
	db := newTestDB(t)
	repo := NewMigrationRepository(db, testLogger())
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rollout := migration.Rollout{
		ID:     "mig-1",
		Config: migration.RolloutConfig{InitialPct: 5, MaxPct: 100, Increment: 10},
		Safety: migration.SafetyThreshold{
			MaxErrorRate: 0.1, MaxLatency: 500 * time.Millisecond, MinSuccessRate: 0.9,
			AutoRollback: true, GracePeriod: time.Hour,
		},
		Phase:      migration.PhaseCanary,
		CurrentPct: 5,
		Metrics: migration.Metrics{
			ErrorRate: 0.01, SuccessRate: 0.99, Latency: 120 * time.Millisecond, ReportedAt: now,
		},
		RollbackCount:  1,
		RollbackReason: "previous incident",
		CreatedAt:      now.Add(-time.Hour),
		StartedAt:      now,
	}

	require.NoError(t, repo.Upsert(ctx, rollout))

	got, ok, err := repo.Get(ctx, "mig-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rollout.ID, got.ID)
	assert.Equal(t, rollout.Config, got.Config)
	assert.Equal(t, rollout.Safety, got.Safety)
	assert.Equal(t, rollout.Phase, got.Phase)
	assert.Equal(t, rollout.CurrentPct, got.CurrentPct)
	assert.Equal(t, rollout.Metrics, got.Metrics)
	assert.Equal(t, rollout.RollbackCount, got.RollbackCount)
	assert.Equal(t, rollout.RollbackReason, got.RollbackReason)
	assert.True(t, rollout.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, rollout.StartedAt.Equal(got.StartedAt))
}

func TestMigrationRepository_GetUnknownIDReturnsFalse(t *testing.T) {
	db := newTestDB(t)
	repo := NewMigrationRepository(db, testLogger())

	_, ok, err := repo.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrationRepository_UpsertOverwritesExistingRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewMigrationRepository(db, testLogger())
	ctx := context.Background()

	base := migration.Rollout{
		ID:         "mig-1",
		Config:     migration.RolloutConfig{MaxPct: 100, Increment: 10},
		Phase:      migration.PhaseCanary,
		CurrentPct: 10,
		CreatedAt:  time.Now().Truncate(time.Second),
	}
	require.NoError(t, repo.Upsert(ctx, base))

	base.Phase = migration.PhaseFull
	base.CurrentPct = 60
	require.NoError(t, repo.Upsert(ctx, base))

	got, ok, err := repo.Get(ctx, "mig-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, migration.PhaseFull, got.Phase)
	assert.Equal(t, 60, got.CurrentPct)
}

func TestMigrationRepository_ListReturnsAllOrderedByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewMigrationRepository(db, testLogger())
	ctx := context.Background()

	for _, id := range []string{"mig-b", "mig-a", "mig-c"} {
		require.NoError(t, repo.Upsert(ctx, migration.Rollout{
			ID: id, Config: migration.RolloutConfig{MaxPct: 100, Increment: 10},
			Phase: migration.PhaseDisabled, CreatedAt: time.Now().Truncate(time.Second),
		}))
	}

	rollouts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rollouts, 3)
	assert.Equal(t, []string{"mig-a", "mig-b", "mig-c"}, []string{rollouts[0].ID, rollouts[1].ID, rollouts[2].ID})
}

func TestMigrationRepository_DeleteRemovesRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewMigrationRepository(db, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, migration.Rollout{
		ID: "mig-1", Config: migration.RolloutConfig{MaxPct: 100, Increment: 10},
		Phase: migration.PhaseDisabled, CreatedAt: time.Now().Truncate(time.Second),
	}))
	require.NoError(t, repo.Delete(ctx, "mig-1"))

	_, ok, err := repo.Get(ctx, "mig-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
