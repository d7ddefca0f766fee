package ai

import (
	"fmt"
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/circuitbreaker"
)

// CoordinatorConfig governs the AI coordinator's resource caps, circuit
// breaker, and fallback policy.
type CoordinatorConfig struct {
	MaxConcurrentRequests int
	Breaker               circuitbreaker.Config
	FallbackOnError       bool
	MinTechnicalConfidence float64
}

// DefaultCoordinatorConfig is the balanced preset.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxConcurrentRequests: 50,
		Breaker:               circuitbreaker.DefaultConfig(),
		FallbackOnError:       true,
		MinTechnicalConfidence: 0.4,
	}
}

// HighThroughputCoordinatorConfig raises the concurrency cap and shortens
// the breaker cooldown for deployments fronting many users.
func HighThroughputCoordinatorConfig() CoordinatorConfig {
	cfg := DefaultCoordinatorConfig()
	cfg.MaxConcurrentRequests = 200
	cfg.Breaker.Cooldown = 10 * time.Second
	return cfg
}

// HighReliabilityCoordinatorConfig trips the breaker sooner and holds it
// open longer, trading availability for protecting a fragile downstream.
func HighReliabilityCoordinatorConfig() CoordinatorConfig {
	cfg := DefaultCoordinatorConfig()
	cfg.Breaker.Threshold = 3
	cfg.Breaker.Cooldown = 60 * time.Second
	cfg.MinTechnicalConfidence = 0.6
	return cfg
}

// Validate returns a structured error for zero caps or out-of-range
// confidence thresholds.
func (c CoordinatorConfig) Validate() error {
	if c.MaxConcurrentRequests <= 0 {
		return apperr.New(apperr.ConfigError, "ai.CoordinatorConfig.Validate", fmt.Errorf("max concurrent requests must be positive"))
	}
	if c.Breaker.Threshold <= 0 {
		return apperr.New(apperr.ConfigError, "ai.CoordinatorConfig.Validate", fmt.Errorf("breaker threshold must be positive"))
	}
	if c.Breaker.Cooldown <= 0 {
		return apperr.New(apperr.ConfigError, "ai.CoordinatorConfig.Validate", fmt.Errorf("breaker cooldown must be positive"))
	}
	if c.MinTechnicalConfidence < 0 || c.MinTechnicalConfidence > 1 {
		return apperr.New(apperr.ValidationError, "ai.CoordinatorConfig.Validate", fmt.Errorf("min technical confidence must be in [0,1]"))
	}
	return nil
}
