package distribution

import "github.com/aristath/arbitrage-platform/internal/apperr"

// Config governs batch sizing, per-user rate limits, and the page
// size used to walk active sessions during eligibility filtering.
type Config struct {
	BatchSize       int
	MaxPerHour      int
	MaxPerDay       int
	SessionPageSize int
}

// DefaultConfig fits a general-purpose distribution workload.
func DefaultConfig() Config {
	return Config{
		BatchSize:       100,
		MaxPerHour:      3,
		MaxPerDay:       10,
		SessionPageSize: 200,
	}
}

// HighThroughput widens the batch and session page size for
// high-volume detection periods, at the cost of looser per-user caps.
func HighThroughput() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 500
	cfg.MaxPerHour = 5
	cfg.SessionPageSize = 1000
	return cfg
}

// HighReliability tightens per-user rate limits to reduce notification
// fatigue at the cost of narrower reach per opportunity.
func HighReliability() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 50
	cfg.MaxPerHour = 1
	cfg.MaxPerDay = 4
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return apperr.New(apperr.ConfigError, "distribution.Config", configErr("batch_size must be positive"))
	}
	if c.MaxPerHour <= 0 {
		return apperr.New(apperr.ConfigError, "distribution.Config", configErr("max_per_hour must be positive"))
	}
	if c.MaxPerDay <= 0 {
		return apperr.New(apperr.ConfigError, "distribution.Config", configErr("max_per_day must be positive"))
	}
	if c.MaxPerDay < c.MaxPerHour {
		return apperr.New(apperr.ConfigError, "distribution.Config", configErr("max_per_day must be at least max_per_hour"))
	}
	if c.SessionPageSize <= 0 {
		return apperr.New(apperr.ConfigError, "distribution.Config", configErr("session_page_size must be positive"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
