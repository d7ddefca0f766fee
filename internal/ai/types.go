// Package ai implements the embedding, routing, and personalization
// engines (C3) and the coordinator that fronts them with a circuit
// breaker, rate limiting, and fallbacks (C4).
package ai

import (
	"time"

	"github.com/aristath/arbitrage-platform/internal/domain"
)

// Embedding is a dense vector representation of an opportunity, used for
// similarity search.
type Embedding struct {
	OpportunityID string    `json:"opportunity_id"`
	Vector        []float64 `json:"vector"`
}

// RoutingRequirements describes what a caller needs from a model: minimum
// capability tier and a latency budget.
type RoutingRequirements struct {
	Capability    string        `json:"capability"`
	LatencyBudget time.Duration `json:"latency_budget"`
}

// RoutingDecision names the model chosen to serve a request.
type RoutingDecision struct {
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}

// FactorContribution is one named input to a personalization score.
type FactorContribution struct {
	Factor      string  `json:"factor"`
	Contribution float64 `json:"contribution"`
}

// RankedOpportunity is an opportunity annotated with a personalization
// score and the factors that produced it.
type RankedOpportunity struct {
	Opportunity domain.ArbitrageOpportunity `json:"opportunity"`
	Score       float64                     `json:"score"`
	Factors     []FactorContribution        `json:"factors"`
	Confidence  float64                     `json:"confidence"`
	Explanation string                      `json:"explanation"`
}

// InteractionKind classifies a recorded user interaction.
type InteractionKind string

const (
	InteractionViewed   InteractionKind = "viewed"
	InteractionAccepted InteractionKind = "accepted"
	InteractionDismissed InteractionKind = "dismissed"
)

// UserInteraction records a user's reaction to a distributed opportunity,
// the training signal for personalization.
type UserInteraction struct {
	UserID        string          `json:"user_id"`
	OpportunityID string          `json:"opportunity_id"`
	Kind          InteractionKind `json:"kind"`
	Outcome       *float64        `json:"outcome,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Health reports the coordinator's current operability.
type Health struct {
	Healthy             bool                          `json:"healthy"`
	CircuitBreakerState string                        `json:"circuit_breaker_state"`
	ActiveRequests      int                           `json:"active_requests"`
	MaxConcurrent       int                           `json:"max_concurrent"`
}

// Metrics aggregates coordinator-wide counters.
type Metrics struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	FallbackRequests   int64
	CircuitBreakerTrips int64
	AverageLatency      map[string]time.Duration
}
