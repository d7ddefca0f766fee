package infra

import (
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/circuitbreaker"
)

// Config governs the infrastructure coordinator's restart bound,
// shutdown deadline, data directory (for disk-usage reporting), and
// the per-service circuit-breaker defaults.
type Config struct {
	MaxRestartAttempts int
	ShutdownTimeout    time.Duration
	DataDir            string
	CircuitBreaker     circuitbreaker.Config
}

// DefaultConfig fits a general-purpose deployment.
func DefaultConfig() Config {
	return Config{
		MaxRestartAttempts: 3,
		ShutdownTimeout:    30 * time.Second,
		DataDir:            ".",
		CircuitBreaker:     circuitbreaker.DefaultConfig(),
	}
}

// HighAvailability allows more restart attempts and a longer shutdown
// grace period for services with slow, stateful teardown.
func HighAvailability() Config {
	cfg := DefaultConfig()
	cfg.MaxRestartAttempts = 10
	cfg.ShutdownTimeout = 2 * time.Minute
	return cfg
}

// FastFail gives up restarting after one attempt and shortens the
// shutdown grace period, favoring fast operator signal over self-healing
// attempts; the circuit-breaker settings stay at their defaults.
func FastFail() Config {
	cfg := DefaultConfig()
	cfg.MaxRestartAttempts = 1
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.MaxRestartAttempts <= 0 {
		return apperr.New(apperr.ConfigError, "infra.Config", configErr("max_restart_attempts must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		return apperr.New(apperr.ConfigError, "infra.Config", configErr("shutdown_timeout_seconds must be positive"))
	}
	if c.DataDir == "" {
		return apperr.New(apperr.ConfigError, "infra.Config", configErr("data_dir must not be empty"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
