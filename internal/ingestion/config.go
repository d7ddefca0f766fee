package ingestion

import (
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Config governs the pipeline manager's batching behavior.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	// StreamingEndpointAvailable models whether a downstream streaming
	// endpoint is configured; when false every event is written
	// directly to the object store instead of batched.
	StreamingEndpointAvailable bool
}

// DefaultConfig batches moderately and assumes the streaming endpoint is
// configured.
func DefaultConfig() Config {
	return Config{
		BatchSize:                  100,
		FlushInterval:              5 * time.Second,
		StreamingEndpointAvailable: true,
	}
}

// HighThroughput batches more aggressively for high-volume market-data
// feeds.
func HighThroughput() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 1000
	cfg.FlushInterval = 2 * time.Second
	return cfg
}

// HighReliability flushes promptly in small batches to minimize data
// held only in memory.
func HighReliability() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 20
	cfg.FlushInterval = 500 * time.Millisecond
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return apperr.New(apperr.ConfigError, "ingestion.Config", configErr("batch_size must be positive"))
	}
	if c.FlushInterval <= 0 {
		return apperr.New(apperr.ConfigError, "ingestion.Config", configErr("flush_interval must be positive"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
