package ai

import (
	"context"
	"math"
	"sync"

	"github.com/aristath/arbitrage-platform/internal/domain"
)

// EmbeddingEngine generates vector embeddings for opportunities and finds
// similar ones by vector distance.
type EmbeddingEngine interface {
	Embed(ctx context.Context, opportunities []domain.ArbitrageOpportunity) ([]Embedding, error)
	FindSimilar(ctx context.Context, reference Embedding, limit int, candidates []Embedding) ([]Embedding, error)
}

// ModelRouter picks the best model descriptor for a request.
type ModelRouter interface {
	Route(ctx context.Context, requirements RoutingRequirements) (RoutingDecision, error)
}

// PersonalizationEngine ranks opportunities for a specific user.
type PersonalizationEngine interface {
	Rank(ctx context.Context, userID string, opportunities []domain.ArbitrageOpportunity) ([]RankedOpportunity, error)
	RecordInteraction(ctx context.Context, interaction UserInteraction) error
}

// featureEmbeddingEngine derives a small deterministic feature vector from
// an opportunity's numeric fields. It stands in for a learned embedding
// model behind the same interface.
type featureEmbeddingEngine struct{}

// NewFeatureEmbeddingEngine builds the reference EmbeddingEngine.
func NewFeatureEmbeddingEngine() EmbeddingEngine {
	return &featureEmbeddingEngine{}
}

func (e *featureEmbeddingEngine) Embed(_ context.Context, opportunities []domain.ArbitrageOpportunity) ([]Embedding, error) {
	out := make([]Embedding, 0, len(opportunities))
	for _, opp := range opportunities {
		profit := 0.0
		if opp.PotentialProfitValue != nil {
			profit = *opp.PotentialProfitValue
		}
		net := opp.RateDifference
		if opp.NetRateDifference != nil {
			net = *opp.NetRateDifference
		}
		out = append(out, Embedding{
			OpportunityID: opp.ID,
			Vector:        []float64{opp.RateDifference, net, profit, float64(opp.Timestamp)},
		})
	}
	return out, nil
}

func (e *featureEmbeddingEngine) FindSimilar(_ context.Context, reference Embedding, limit int, candidates []Embedding) ([]Embedding, error) {
	type scored struct {
		embedding Embedding
		distance  float64
	}
	scoredCandidates := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.OpportunityID == reference.OpportunityID {
			continue
		}
		scoredCandidates = append(scoredCandidates, scored{embedding: c, distance: euclidean(reference.Vector, c.Vector)})
	}

	// Simple insertion sort: candidate sets here are small (bounded by the
	// caller) so an O(n^2) sort keeps this dependency-free and obviously
	// correct.
	for i := 1; i < len(scoredCandidates); i++ {
		for j := i; j > 0 && scoredCandidates[j].distance < scoredCandidates[j-1].distance; j-- {
			scoredCandidates[j], scoredCandidates[j-1] = scoredCandidates[j-1], scoredCandidates[j]
		}
	}

	if limit > len(scoredCandidates) {
		limit = len(scoredCandidates)
	}
	out := make([]Embedding, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, scoredCandidates[i].embedding)
	}
	return out, nil
}

func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// staticModelRouter picks a model purely from the requested capability
// tier, standing in for a learned or externally-configured router.
type staticModelRouter struct {
	catalogue map[string]RoutingDecision
}

// NewStaticModelRouter builds a ModelRouter backed by a fixed capability
// catalogue.
func NewStaticModelRouter() ModelRouter {
	return &staticModelRouter{
		catalogue: map[string]RoutingDecision{
			"fast":     {Model: "opportunity-scorer-fast", Confidence: 0.7},
			"standard": {Model: "opportunity-scorer-standard", Confidence: 0.85},
			"premium":  {Model: "opportunity-scorer-premium", Confidence: 0.95},
		},
	}
}

func (r *staticModelRouter) Route(_ context.Context, requirements RoutingRequirements) (RoutingDecision, error) {
	if decision, ok := r.catalogue[requirements.Capability]; ok {
		return decision, nil
	}
	return r.catalogue["standard"], nil
}

// rateWeightedPersonalizationEngine ranks opportunities by a rate-
// difference weighted score, the same formula the fallback path uses, but
// additionally folds in the requesting user's accept/dismiss history as a
// small per-user multiplier.
type rateWeightedPersonalizationEngine struct {
	mu           sync.Mutex
	acceptWeight map[string]float64 // userID -> multiplier
}

func newRateWeightedPersonalizationEngine() *rateWeightedPersonalizationEngine {
	return &rateWeightedPersonalizationEngine{acceptWeight: make(map[string]float64)}
}

// NewPersonalizationEngine builds the reference PersonalizationEngine.
func NewPersonalizationEngine() PersonalizationEngine {
	return newRateWeightedPersonalizationEngine()
}

func (p *rateWeightedPersonalizationEngine) Rank(_ context.Context, userID string, opportunities []domain.ArbitrageOpportunity) ([]RankedOpportunity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ranked := make([]RankedOpportunity, 0, len(opportunities))
	for _, opp := range opportunities {
		base := clamp(opp.RateDifference/10, 0, 1)
		multiplier := 1 + p.acceptWeight[userID]
		if multiplier < 0 {
			multiplier = 0
		}
		score := clamp(base*multiplier, 0, 1)

		ranked = append(ranked, RankedOpportunity{
			Opportunity: opp,
			Score:       score,
			Factors: []FactorContribution{
				{Factor: "rate_difference", Contribution: base},
				{Factor: "user_history", Contribution: multiplier - 1},
			},
			Confidence:  0.75,
			Explanation: "ranked by rate difference adjusted for prior interactions",
		})
	}

	sortRankedDescending(ranked)
	return ranked, nil
}

func (p *rateWeightedPersonalizationEngine) RecordInteraction(_ context.Context, interaction UserInteraction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch interaction.Kind {
	case InteractionAccepted:
		p.acceptWeight[interaction.UserID] += 0.1
	case InteractionDismissed:
		p.acceptWeight[interaction.UserID] -= 0.1
	}
	return nil
}

func sortRankedDescending(ranked []RankedOpportunity) {
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
