package migration

import "github.com/aristath/arbitrage-platform/internal/apperr"

// ManagerConfig governs the migration manager's admission control.
type ManagerConfig struct {
	MaxConcurrentMigrations int
}

// DefaultConfig fits a general-purpose rollout workload.
func DefaultConfig() ManagerConfig {
	return ManagerConfig{MaxConcurrentMigrations: 10}
}

// HighThroughput raises the concurrent-rollout cap for platforms
// running many simultaneous staged migrations.
func HighThroughput() ManagerConfig {
	return ManagerConfig{MaxConcurrentMigrations: 50}
}

// HighReliability keeps the concurrent-rollout cap small so each
// migration gets closer operational attention.
func HighReliability() ManagerConfig {
	return ManagerConfig{MaxConcurrentMigrations: 3}
}

// Validate rejects nonsensical configuration.
func (c ManagerConfig) Validate() error {
	if c.MaxConcurrentMigrations <= 0 {
		return apperr.New(apperr.ConfigError, "migration.ManagerConfig", configErr("max_concurrent_migrations must be positive"))
	}
	return nil
}

// Validate rejects a rollout configuration outside the documented
// bounds: initial percentage in [0, 100], max percentage at least the
// initial, and a positive increment.
func (c RolloutConfig) Validate() error {
	if c.InitialPct < 0 || c.InitialPct > 100 {
		return apperr.New(apperr.ConfigError, "migration.RolloutConfig", configErr("initial_pct must be in [0, 100]"))
	}
	if c.MaxPct < c.InitialPct || c.MaxPct > 100 {
		return apperr.New(apperr.ConfigError, "migration.RolloutConfig", configErr("max_pct must be in [initial_pct, 100]"))
	}
	if c.Increment <= 0 {
		return apperr.New(apperr.ConfigError, "migration.RolloutConfig", configErr("increment must be positive"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
