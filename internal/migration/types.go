// Package migration implements the migration manager (C10): staged,
// percentage-based feature rollouts with safety-threshold monitoring,
// sticky per-identifier feature gating, and manual or automatic
// rollback.
package migration

import "time"

// Phase is a rollout's position in its staged-delivery lifecycle.
type Phase string

const (
	PhaseDisabled Phase = "disabled"
	PhaseCanary   Phase = "canary"
	PhaseGradual  Phase = "gradual"
	PhaseFull     Phase = "full"
	PhaseCompleted Phase = "completed"
	PhaseRollback Phase = "rollback"
)

func (p Phase) active() bool { return p != PhaseCompleted && p != PhaseDisabled }

// RolloutConfig governs one migration's percentage progression.
type RolloutConfig struct {
	InitialPct int
	MaxPct     int
	Increment  int
}

// SafetyThreshold bounds the error rate, latency, and success rate a
// rollout is permitted before it is considered unsafe to progress.
type SafetyThreshold struct {
	MaxErrorRate   float64
	MaxLatency     time.Duration
	MinSuccessRate float64
	AutoRollback   bool
	GracePeriod    time.Duration
}

// Metrics is the most recently reported health sample for a rollout.
type Metrics struct {
	ErrorRate   float64
	SuccessRate float64
	Latency     time.Duration
	ReportedAt  time.Time
}

// Rollout is one migration's full state: configuration, current
// phase and percentage, the last reported metrics, and rollback
// bookkeeping.
type Rollout struct {
	ID             string
	Config         RolloutConfig
	Safety         SafetyThreshold
	Phase          Phase
	CurrentPct     int
	Metrics        Metrics
	RollbackCount  int
	RollbackReason string
	CreatedAt      time.Time
	StartedAt      time.Time
}
