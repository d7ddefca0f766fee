package txn

import (
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Config governs the transaction coordinator's admission control,
// timeouts, retry policy, and log retention.
type Config struct {
	MaxConcurrentTransactions int
	TransactionTimeout        time.Duration
	LogRetention              time.Duration
	RetryEnabled              bool
	MaxRetryAttempts          int
	RetryDelay                time.Duration
}

// DefaultConfig fits a general-purpose workload.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTransactions: 50,
		TransactionTimeout:        30 * time.Second,
		LogRetention:              24 * time.Hour,
		RetryEnabled:              true,
		MaxRetryAttempts:          3,
		RetryDelay:                100 * time.Millisecond,
	}
}

// HighConcurrency raises the concurrent-transaction cap for bursty
// workloads at the cost of a shorter per-transaction timeout.
func HighConcurrency() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTransactions = 200
	cfg.TransactionTimeout = 10 * time.Second
	return cfg
}

// HighReliability favors fewer, longer-lived, more heavily retried
// transactions with a longer audit log retention window.
func HighReliability() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTransactions = 20
	cfg.TransactionTimeout = 60 * time.Second
	cfg.LogRetention = 7 * 24 * time.Hour
	cfg.MaxRetryAttempts = 5
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.MaxConcurrentTransactions <= 0 {
		return apperr.New(apperr.ConfigError, "txn.Config", configErr("max_concurrent_transactions must be positive"))
	}
	if c.TransactionTimeout <= 0 {
		return apperr.New(apperr.ConfigError, "txn.Config", configErr("transaction_timeout must be positive"))
	}
	if c.LogRetention <= 0 {
		return apperr.New(apperr.ConfigError, "txn.Config", configErr("log_retention must be positive"))
	}
	if c.RetryEnabled && c.MaxRetryAttempts <= 0 {
		return apperr.New(apperr.ConfigError, "txn.Config", configErr("max_retry_attempts must be positive when retries are enabled"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
