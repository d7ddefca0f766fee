package ai

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/aicache"
	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/circuitbreaker"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

// Coordinator fronts the embedding, routing, and personalization engines
// plus the AI cache with a circuit breaker, a concurrency cap, and
// allowlisted fallbacks.
type Coordinator struct {
	cfg     CoordinatorConfig
	log     zerolog.Logger
	breaker *circuitbreaker.Breaker
	cache   *aicache.AICache

	embedding      EmbeddingEngine
	router         ModelRouter
	personalization PersonalizationEngine

	mu             sync.Mutex
	activeRequests int
	metrics        Metrics
	featureEnabled bool
}

// NewCoordinator wires the engines and cache behind the coordinator.
func NewCoordinator(cfg CoordinatorConfig, cache *aicache.AICache, embedding EmbeddingEngine, router ModelRouter, personalization PersonalizationEngine, log zerolog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:             cfg,
		log:             log.With().Str("service", "ai_coordinator").Logger(),
		breaker:         circuitbreaker.New(cfg.Breaker),
		cache:           cache,
		embedding:       embedding,
		router:          router,
		personalization: personalization,
		featureEnabled:  true,
		metrics:         Metrics{AverageLatency: make(map[string]time.Duration)},
	}, nil
}

// SetFeatureEnabled toggles whether the coordinator attempts downstream
// calls at all; disabling it forces every operation onto its fallback
// path, mirroring the feature-gate integration with C10.
func (c *Coordinator) SetFeatureEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.featureEnabled = enabled
}

func (c *Coordinator) reserveSlot() (func(), error) {
	c.mu.Lock()
	if c.activeRequests >= c.cfg.MaxConcurrentRequests {
		c.mu.Unlock()
		return nil, apperr.New(apperr.RateLimitExceeded, "ai.Coordinator", nil)
	}
	c.activeRequests++
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.activeRequests--
		c.mu.Unlock()
	}, nil
}

// shouldShortCircuit decides whether a downstream call should be skipped in
// favor of its fallback: the feature is disabled or the circuit breaker
// does not admit the call.
func (c *Coordinator) shouldShortCircuit() bool {
	c.mu.Lock()
	enabled := c.featureEnabled
	c.mu.Unlock()
	if !enabled {
		return true
	}
	return !c.breaker.Allow()
}

func (c *Coordinator) recordOutcome(op string, start time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TotalRequests++
	elapsed := time.Since(start)
	prev := c.metrics.AverageLatency[op]
	if prev == 0 {
		c.metrics.AverageLatency[op] = elapsed
	} else {
		c.metrics.AverageLatency[op] = (prev + elapsed) / 2
	}

	if err != nil {
		c.metrics.FailedRequests++
		return
	}
	c.metrics.SuccessfulRequests++
}

func (c *Coordinator) recordFallback() {
	c.mu.Lock()
	c.metrics.FallbackRequests++
	c.mu.Unlock()
}

// recordFailure forwards a downstream failure to the breaker and tracks a
// trip in the metrics the instant the breaker transitions into Open.
func (c *Coordinator) recordFailure() {
	wasOpen := c.breaker.State() == circuitbreaker.Open
	c.breaker.RecordFailure()
	if !wasOpen && c.breaker.State() == circuitbreaker.Open {
		c.mu.Lock()
		c.metrics.CircuitBreakerTrips++
		c.mu.Unlock()
	}
}

// Embed generates embeddings for opportunities, falling back to an empty
// list when the circuit is open, the feature is disabled, or the
// downstream call fails and fallback-on-error is enabled.
func (c *Coordinator) Embed(ctx context.Context, opportunities []domain.ArbitrageOpportunity) ([]Embedding, error) {
	start := time.Now()
	release, err := c.reserveSlot()
	if err != nil {
		return nil, err
	}
	defer release()

	if c.shouldShortCircuit() {
		c.recordFallback()
		return []Embedding{}, nil
	}

	result, err := c.embedding.Embed(ctx, opportunities)
	c.recordOutcome("embed", start, err)
	if err != nil {
		c.recordFailure()
		if c.cfg.FallbackOnError {
			c.recordFallback()
			return []Embedding{}, nil
		}
		return nil, apperr.New(apperr.ServiceUnavailable, "ai.Coordinator.Embed", err)
	}
	c.breaker.RecordSuccess()
	return result, nil
}

// FindSimilar finds opportunities near reference by embedding distance.
func (c *Coordinator) FindSimilar(ctx context.Context, reference Embedding, limit int, candidates []Embedding) ([]Embedding, error) {
	start := time.Now()
	release, err := c.reserveSlot()
	if err != nil {
		return nil, err
	}
	defer release()

	if c.shouldShortCircuit() {
		c.recordFallback()
		return []Embedding{}, nil
	}

	result, err := c.embedding.FindSimilar(ctx, reference, limit, candidates)
	c.recordOutcome("find_similar", start, err)
	if err != nil {
		c.recordFailure()
		if c.cfg.FallbackOnError {
			c.recordFallback()
			return []Embedding{}, nil
		}
		return nil, apperr.New(apperr.ServiceUnavailable, "ai.Coordinator.FindSimilar", err)
	}
	c.breaker.RecordSuccess()
	return result, nil
}

// Route picks a model for requirements, falling back to a deterministic
// local descriptor with low confidence.
func (c *Coordinator) Route(ctx context.Context, requirements RoutingRequirements) (RoutingDecision, error) {
	start := time.Now()
	release, err := c.reserveSlot()
	if err != nil {
		return RoutingDecision{}, err
	}
	defer release()

	fallbackDecision := RoutingDecision{Model: "fallback-local", Confidence: 0.3, Fallback: true}

	if c.shouldShortCircuit() {
		c.recordFallback()
		return fallbackDecision, nil
	}

	result, err := c.router.Route(ctx, requirements)
	c.recordOutcome("route", start, err)
	if err != nil {
		c.recordFailure()
		if c.cfg.FallbackOnError {
			c.recordFallback()
			return fallbackDecision, nil
		}
		return RoutingDecision{}, apperr.New(apperr.ServiceUnavailable, "ai.Coordinator.Route", err)
	}
	c.breaker.RecordSuccess()
	return result, nil
}

// Rank ranks opportunities for userID, falling back to a rate-difference
// score when personalization is unavailable.
func (c *Coordinator) Rank(ctx context.Context, userID string, opportunities []domain.ArbitrageOpportunity) ([]RankedOpportunity, error) {
	start := time.Now()
	release, err := c.reserveSlot()
	if err != nil {
		return nil, err
	}
	defer release()

	if c.shouldShortCircuit() {
		c.recordFallback()
		return fallbackRank(opportunities), nil
	}

	result, err := c.personalization.Rank(ctx, userID, opportunities)
	c.recordOutcome("rank", start, err)
	if err != nil {
		c.recordFailure()
		if c.cfg.FallbackOnError {
			c.recordFallback()
			return fallbackRank(opportunities), nil
		}
		return nil, apperr.New(apperr.ServiceUnavailable, "ai.Coordinator.Rank", err)
	}
	c.breaker.RecordSuccess()
	return result, nil
}

// fallbackRank implements the documented fallback: score each opportunity
// by clamp(rate_difference / 10, 0, 1) and sort descending.
func fallbackRank(opportunities []domain.ArbitrageOpportunity) []RankedOpportunity {
	out := make([]RankedOpportunity, 0, len(opportunities))
	for _, opp := range opportunities {
		score := clamp(opp.RateDifference/10, 0, 1)
		out = append(out, RankedOpportunity{
			Opportunity: opp,
			Score:       score,
			Factors:     []FactorContribution{{Factor: "rate_difference", Contribution: score}},
			Confidence:  0.3,
			Explanation: "fallback ranking: personalization unavailable",
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// RecordInteraction forwards a user interaction to the personalization
// engine. This never falls back silently: a downstream failure here is
// surfaced, since dropping interaction history degrades future ranking
// quality without any visible symptom otherwise.
func (c *Coordinator) RecordInteraction(ctx context.Context, interaction UserInteraction) error {
	if c.shouldShortCircuit() {
		c.recordFallback()
		return apperr.New(apperr.CircuitBreakerOpen, "ai.Coordinator.RecordInteraction", nil)
	}
	err := c.personalization.RecordInteraction(ctx, interaction)
	if err != nil {
		c.recordFailure()
		return apperr.New(apperr.ServiceUnavailable, "ai.Coordinator.RecordInteraction", err)
	}
	c.breaker.RecordSuccess()
	return nil
}

// HealthCheck snapshots the coordinator's current operability without
// blocking in-flight requests.
func (c *Coordinator) HealthCheck(_ context.Context) Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Health{
		Healthy:             c.breaker.State() != circuitbreaker.Open,
		CircuitBreakerState: string(c.breaker.State()),
		ActiveRequests:      c.activeRequests,
		MaxConcurrent:       c.cfg.MaxConcurrentRequests,
	}
}

// GetMetrics returns a copy of the coordinator's aggregate metrics.
func (c *Coordinator) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	latencies := make(map[string]time.Duration, len(c.metrics.AverageLatency))
	for k, v := range c.metrics.AverageLatency {
		latencies[k] = v
	}
	m := c.metrics
	m.AverageLatency = latencies
	return m
}
