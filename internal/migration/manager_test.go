package migration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestManager_CreateAndStartRollout(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 5, MaxPct: 100, Increment: 10}, SafetyThreshold{}))
	r, ok := m.Rollout("mig-1")
	require.True(t, ok)
	assert.Equal(t, PhaseDisabled, r.Phase)

	require.NoError(t, m.StartRollout(ctx, "mig-1"))
	r, _ = m.Rollout("mig-1")
	assert.Equal(t, PhaseCanary, r.Phase)
	assert.Equal(t, 5, r.CurrentPct)
}

func TestManager_CreateRolloutRejectsInvalidConfig(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	err := m.CreateRollout(context.Background(), "bad", RolloutConfig{InitialPct: 50, MaxPct: 20, Increment: 1}, SafetyThreshold{})
	assert.Error(t, err)
}

func TestManager_CreateRolloutRejectsOverCapacity(t *testing.T) {
	cfg := ManagerConfig{MaxConcurrentMigrations: 1}
	m := newTestManager(t, cfg)
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "a", RolloutConfig{MaxPct: 100, Increment: 10}, SafetyThreshold{}))
	require.NoError(t, m.StartRollout(ctx, "a"))

	err := m.CreateRollout(ctx, "b", RolloutConfig{MaxPct: 100, Increment: 10}, SafetyThreshold{})
	assert.Error(t, err)
}

func TestManager_ProgressRolloutAdvancesAndTransitionsPhases(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 0, MaxPct: 90, Increment: 30}, SafetyThreshold{}))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))

	require.NoError(t, m.ProgressRollout(ctx, "mig-1"))
	r, _ := m.Rollout("mig-1")
	assert.Equal(t, 30, r.CurrentPct)
	assert.Equal(t, PhaseGradual, r.Phase)

	require.NoError(t, m.ProgressRollout(ctx, "mig-1"))
	r, _ = m.Rollout("mig-1")
	assert.Equal(t, 60, r.CurrentPct)
	assert.Equal(t, PhaseFull, r.Phase)

	require.NoError(t, m.ProgressRollout(ctx, "mig-1"))
	r, _ = m.Rollout("mig-1")
	assert.Equal(t, 90, r.CurrentPct)
	assert.Equal(t, PhaseCompleted, r.Phase)
}

func TestManager_ProgressRolloutCapsAtMaxPct(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 90, MaxPct: 100, Increment: 50}, SafetyThreshold{}))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))

	require.NoError(t, m.ProgressRollout(ctx, "mig-1"))
	r, _ := m.Rollout("mig-1")
	assert.Equal(t, 100, r.CurrentPct)
	assert.Equal(t, PhaseCompleted, r.Phase)
}

func TestManager_RollbackMigrationResetsAndRecordsReason(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 20, MaxPct: 100, Increment: 10}, SafetyThreshold{}))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))

	require.NoError(t, m.RollbackMigration(ctx, "mig-1", "manual stop"))
	r, _ := m.Rollout("mig-1")
	assert.Equal(t, PhaseRollback, r.Phase)
	assert.Equal(t, 0, r.CurrentPct)
	assert.Equal(t, 1, r.RollbackCount)
	assert.Equal(t, "manual stop", r.RollbackReason)
}

func TestManager_AutoRollbackTriggersOnSafetyViolation(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	safety := SafetyThreshold{MaxErrorRate: 0.05, AutoRollback: true}
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 10, MaxPct: 100, Increment: 10}, safety))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))

	require.NoError(t, m.UpdateMetrics(ctx, "mig-1", Metrics{ErrorRate: 0.5}))
	r, _ := m.Rollout("mig-1")
	assert.Equal(t, PhaseRollback, r.Phase)
	assert.Equal(t, 1, r.RollbackCount)
}

func TestManager_SafetyViolationWithoutAutoRollbackBlocksProgress(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	safety := SafetyThreshold{MaxErrorRate: 0.05, AutoRollback: false}
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 10, MaxPct: 100, Increment: 10}, safety))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))
	require.NoError(t, m.UpdateMetrics(ctx, "mig-1", Metrics{ErrorRate: 0.5}))

	err := m.ProgressRollout(ctx, "mig-1")
	assert.Error(t, err)
	r, _ := m.Rollout("mig-1")
	assert.Equal(t, PhaseCanary, r.Phase)
	assert.Equal(t, 10, r.CurrentPct)
}

func TestManager_GracePeriodSuppressesSafetyViolation(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	safety := SafetyThreshold{MaxErrorRate: 0.05, AutoRollback: true, GracePeriod: time.Hour}
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 10, MaxPct: 100, Increment: 10}, safety))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))

	require.NoError(t, m.UpdateMetrics(ctx, "mig-1", Metrics{ErrorRate: 0.9}))
	r, _ := m.Rollout("mig-1")
	assert.Equal(t, PhaseCanary, r.Phase)
	assert.Equal(t, 0, r.RollbackCount)
}

func TestManager_IsFeatureEnabledFalseWhenDisabledOrRolledBack(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 100, MaxPct: 100, Increment: 10}, SafetyThreshold{}))

	assert.False(t, m.IsFeatureEnabled("mig-1", "feature-x", "user-1"))

	require.NoError(t, m.StartRollout(ctx, "mig-1"))
	require.NoError(t, m.RollbackMigration(ctx, "mig-1", "broke prod"))
	assert.False(t, m.IsFeatureEnabled("mig-1", "feature-x", "user-1"))
}

func TestManager_IsFeatureEnabledTrueWhenCompletedRegardlessOfHash(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 100, MaxPct: 100, Increment: 10}, SafetyThreshold{}))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))
	require.NoError(t, m.ProgressRollout(ctx, "mig-1"))

	r, _ := m.Rollout("mig-1")
	require.Equal(t, PhaseCompleted, r.Phase)
	assert.True(t, m.IsFeatureEnabled("mig-1", "feature-x", "any-user"))
}

func TestManager_IsFeatureEnabledIsStickyPerIdentifier(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, m.CreateRollout(ctx, "mig-1", RolloutConfig{InitialPct: 50, MaxPct: 100, Increment: 10}, SafetyThreshold{}))
	require.NoError(t, m.StartRollout(ctx, "mig-1"))

	first := m.IsFeatureEnabled("mig-1", "feature-x", "user-42")
	second := m.IsFeatureEnabled("mig-1", "feature-x", "user-42")
	assert.Equal(t, first, second)
}

func TestManager_IsFeatureEnabledUnknownMigrationIsFalse(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	assert.False(t, m.IsFeatureEnabled("does-not-exist", "feature-x", "user-1"))
}
