package stream

import (
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Config governs a Processor's buffering, windowing, and analysis
// thresholds.
type Config struct {
	// MaxPointsPerStream bounds the FIFO for each stream id. Once full,
	// the oldest point is evicted to make room for the newest.
	MaxPointsPerStream int
	// AggregationCacheTTL is how long a computed AggregatedWindow is
	// reused before being recomputed from the live buffer.
	AggregationCacheTTL time.Duration
	// StatisticalAnalysisMinPoints is the minimum sample size before
	// skewness/kurtosis/full percentile tables are computed.
	StatisticalAnalysisMinPoints int
	// TrendMinPoints is the minimum sample size before trend detection
	// runs a linear regression.
	TrendMinPoints int
	// AnomalyZScoreThreshold is the |z| above which a point is flagged.
	AnomalyZScoreThreshold float64
	// MaxPointAge prunes points older than this from every stream on
	// each Cleanup call.
	MaxPointAge time.Duration
}

// DefaultConfig favors a general-purpose market-data feed.
func DefaultConfig() Config {
	return Config{
		MaxPointsPerStream:           10_000,
		AggregationCacheTTL:          5 * time.Second,
		StatisticalAnalysisMinPoints: 10,
		TrendMinPoints:               20,
		AnomalyZScoreThreshold:       3.0,
		MaxPointAge:                  24 * time.Hour,
	}
}

// HighFrequency shortens the cache TTL and shrinks the buffer for streams
// that tick many times a second and are mostly consumed for their most
// recent window.
func HighFrequency() Config {
	cfg := DefaultConfig()
	cfg.MaxPointsPerStream = 2_000
	cfg.AggregationCacheTTL = 500 * time.Millisecond
	cfg.MaxPointAge = 1 * time.Hour
	return cfg
}

// LongHorizon widens the buffer and cache TTL for streams analyzed over
// days rather than minutes.
func LongHorizon() Config {
	cfg := DefaultConfig()
	cfg.MaxPointsPerStream = 100_000
	cfg.AggregationCacheTTL = 30 * time.Second
	cfg.MaxPointAge = 7 * 24 * time.Hour
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.MaxPointsPerStream <= 0 {
		return apperr.New(apperr.ConfigError, "stream.Config", errInvalid("max_points_per_stream must be positive"))
	}
	if c.AggregationCacheTTL < 0 {
		return apperr.New(apperr.ConfigError, "stream.Config", errInvalid("aggregation_cache_ttl must not be negative"))
	}
	if c.StatisticalAnalysisMinPoints < 2 {
		return apperr.New(apperr.ConfigError, "stream.Config", errInvalid("statistical_analysis_min_points must be at least 2"))
	}
	if c.TrendMinPoints < 2 {
		return apperr.New(apperr.ConfigError, "stream.Config", errInvalid("trend_min_points must be at least 2"))
	}
	if c.AnomalyZScoreThreshold <= 0 {
		return apperr.New(apperr.ConfigError, "stream.Config", errInvalid("anomaly_z_score_threshold must be positive"))
	}
	return nil
}

type errInvalid string

func (e errInvalid) Error() string { return string(e) }
