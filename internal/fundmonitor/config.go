package fundmonitor

import (
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Config governs snapshot caching, dust filtering, and the
// optimizer's dead-band and high-variance thresholds.
type Config struct {
	SnapshotTTL          time.Duration
	MinBalanceThreshold  float64 // in native asset units, applied before pricing
	DeadBandPct          float64 // e.g. 0.05 for a 5% dead-band
	HighVarianceThreshold float64 // e.g. 0.15 for 15%
}

// DefaultConfig fits routine polling of exchange balances.
func DefaultConfig() Config {
	return Config{
		SnapshotTTL:           60 * time.Second,
		MinBalanceThreshold:   1e-6,
		DeadBandPct:           0.05,
		HighVarianceThreshold: 0.15,
	}
}

// HighThroughput shortens the snapshot TTL for dashboards that poll
// many (user, venue) pairs and expect near-live balances.
func HighThroughput() Config {
	cfg := DefaultConfig()
	cfg.SnapshotTTL = 10 * time.Second
	return cfg
}

// HighReliability widens the snapshot TTL and dead-band to reduce
// exchange API load and avoid churny rebalancing guidance.
func HighReliability() Config {
	cfg := DefaultConfig()
	cfg.SnapshotTTL = 5 * time.Minute
	cfg.DeadBandPct = 0.08
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.SnapshotTTL <= 0 {
		return apperr.New(apperr.ConfigError, "fundmonitor.Config", configErr("snapshot_ttl must be positive"))
	}
	if c.MinBalanceThreshold < 0 {
		return apperr.New(apperr.ConfigError, "fundmonitor.Config", configErr("min_balance_threshold must not be negative"))
	}
	if c.DeadBandPct <= 0 || c.DeadBandPct >= 1 {
		return apperr.New(apperr.ConfigError, "fundmonitor.Config", configErr("dead_band_pct must be in (0, 1)"))
	}
	if c.HighVarianceThreshold <= c.DeadBandPct || c.HighVarianceThreshold >= 1 {
		return apperr.New(apperr.ConfigError, "fundmonitor.Config", configErr("high_variance_threshold must be in (dead_band_pct, 1)"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
