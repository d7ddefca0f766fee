package migration

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Manager holds the rollout table and enforces admission control,
// staged progression, safety monitoring, and feature gating.
type Manager struct {
	cfg ManagerConfig
	log zerolog.Logger

	mu       sync.RWMutex
	rollouts map[string]*Rollout
}

// New builds a Manager.
func New(cfg ManagerConfig, log zerolog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		log:      log.With().Str("service", "migration_manager").Logger(),
		rollouts: make(map[string]*Rollout),
	}, nil
}

// CreateRollout registers a new, disabled rollout, admitted only if
// fewer than max_concurrent_migrations are currently active (not
// completed and not disabled).
func (m *Manager) CreateRollout(_ context.Context, id string, rc RolloutConfig, safety SafetyThreshold) error {
	if err := rc.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rollouts[id]; exists {
		return apperr.New(apperr.ValidationError, "migration.Manager.CreateRollout", migErr("migration id already exists"))
	}

	active := 0
	for _, r := range m.rollouts {
		if r.Phase.active() {
			active++
		}
	}
	if active >= m.cfg.MaxConcurrentMigrations {
		return apperr.New(apperr.RateLimitExceeded, "migration.Manager.CreateRollout", migErr("max_concurrent_migrations reached"))
	}

	m.rollouts[id] = &Rollout{
		ID:        id,
		Config:    rc,
		Safety:    safety,
		Phase:     PhaseDisabled,
		CreatedAt: time.Now(),
	}
	return nil
}

// StartRollout transitions a disabled rollout to canary at its
// configured initial percentage.
func (m *Manager) StartRollout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rollouts[id]
	if !ok {
		return apperr.New(apperr.NotFound, "migration.Manager.StartRollout", nil)
	}
	if r.Phase != PhaseDisabled {
		return apperr.New(apperr.ValidationError, "migration.Manager.StartRollout", migErr("rollout is not disabled"))
	}

	r.Phase = PhaseCanary
	r.CurrentPct = r.Config.InitialPct
	r.StartedAt = time.Now()
	return nil
}

// ProgressRollout checks the rollout's safety thresholds (rolling
// back automatically if violated and AutoRollback is set), then, if
// still healthy, advances the percentage by Increment bounded by
// MaxPct and transitions phase accordingly.
func (m *Manager) ProgressRollout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rollouts[id]
	if !ok {
		return apperr.New(apperr.NotFound, "migration.Manager.ProgressRollout", nil)
	}
	if !r.Phase.active() || r.Phase == PhaseRollback {
		return apperr.New(apperr.ValidationError, "migration.Manager.ProgressRollout", migErr("rollout is not progressable from its current phase"))
	}

	if violation := m.checkSafetyLocked(r); violation != nil {
		if r.Safety.AutoRollback {
			m.rollbackLocked(r, violation.Error())
			return apperr.New(apperr.ValidationError, "migration.Manager.ProgressRollout", violation)
		}
		return apperr.New(apperr.ValidationError, "migration.Manager.ProgressRollout", violation)
	}

	r.CurrentPct += r.Config.Increment
	if r.CurrentPct > r.Config.MaxPct {
		r.CurrentPct = r.Config.MaxPct
	}
	r.Phase = phaseForPct(r.CurrentPct, r.Config.MaxPct)
	return nil
}

// RollbackMigration forces a rollout to 0%, rollback phase, with the
// given reason, incrementing its rollback count.
func (m *Manager) RollbackMigration(_ context.Context, id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rollouts[id]
	if !ok {
		return apperr.New(apperr.NotFound, "migration.Manager.RollbackMigration", nil)
	}
	m.rollbackLocked(r, reason)
	return nil
}

func (m *Manager) rollbackLocked(r *Rollout, reason string) {
	r.CurrentPct = 0
	r.Phase = PhaseRollback
	r.RollbackCount++
	r.RollbackReason = reason
}

// UpdateMetrics records a rollout's latest health sample and, if the
// result violates its safety threshold and AutoRollback is set,
// immediately rolls it back.
func (m *Manager) UpdateMetrics(_ context.Context, id string, metrics Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rollouts[id]
	if !ok {
		return apperr.New(apperr.NotFound, "migration.Manager.UpdateMetrics", nil)
	}
	metrics.ReportedAt = time.Now()
	r.Metrics = metrics

	if !r.Phase.active() || r.Phase == PhaseRollback {
		return nil
	}
	if violation := m.checkSafetyLocked(r); violation != nil && r.Safety.AutoRollback {
		m.rollbackLocked(r, violation.Error())
	}
	return nil
}

// checkSafetyLocked returns the violated safety threshold, or nil if
// none is violated or the rollout is still within its grace period.
func (m *Manager) checkSafetyLocked(r *Rollout) error {
	if !r.StartedAt.IsZero() && time.Since(r.StartedAt) < r.Safety.GracePeriod {
		return nil
	}
	if r.Metrics.ReportedAt.IsZero() {
		return nil
	}
	if r.Safety.MaxErrorRate > 0 && r.Metrics.ErrorRate > r.Safety.MaxErrorRate {
		return migErr("error rate exceeds safety threshold")
	}
	if r.Safety.MaxLatency > 0 && r.Metrics.Latency > r.Safety.MaxLatency {
		return migErr("latency exceeds safety threshold")
	}
	if r.Safety.MinSuccessRate > 0 && r.Metrics.SuccessRate < r.Safety.MinSuccessRate {
		return migErr("success rate below safety threshold")
	}
	return nil
}

// phaseForPct maps a current percentage (relative to maxPct) to its
// staged-delivery phase: the first and final thirds of the way to
// maxPct are canary and full, the middle third is gradual, and
// reaching maxPct itself completes the rollout.
func phaseForPct(currentPct, maxPct int) Phase {
	if maxPct <= 0 {
		return PhaseCompleted
	}
	if currentPct >= maxPct {
		return PhaseCompleted
	}
	third := float64(maxPct) / 3
	switch {
	case float64(currentPct) >= 2*third:
		return PhaseFull
	case float64(currentPct) >= third:
		return PhaseGradual
	default:
		return PhaseCanary
	}
}

// Rollout returns a copy of one rollout's current state.
func (m *Manager) Rollout(id string) (Rollout, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rollouts[id]
	if !ok {
		return Rollout{}, false
	}
	return *r, true
}

// ActiveRolloutIDs returns the IDs of every rollout still in a phase
// that warrants periodic safety polling (everything except completed
// and disabled), for schedulers that drive ProgressRollout.
func (m *Manager) ActiveRolloutIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rollouts))
	for id, r := range m.rollouts {
		if r.Phase.active() {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsFeatureEnabled reports whether feature is enabled for identifier
// under migration. It returns true only when the migration exists and
// is in a non-disabled, non-rollback phase (true when completed), and
// a deterministic hash of (migration, feature, identifier) mod 100
// falls below the rollout's current percentage.
func (m *Manager) IsFeatureEnabled(migrationID, feature, identifier string) bool {
	m.mu.RLock()
	r, ok := m.rollouts[migrationID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if r.Phase == PhaseDisabled || r.Phase == PhaseRollback {
		return false
	}
	if r.Phase == PhaseCompleted {
		return true
	}
	return stickyHash(migrationID, feature, identifier)%100 < uint32(r.CurrentPct)
}

type migErr string

func (e migErr) Error() string { return string(e) }
