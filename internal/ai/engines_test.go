package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureEmbeddingEngine_EmbedProducesOneVectorPerOpportunity(t *testing.T) {
	engine := NewFeatureEmbeddingEngine()
	opportunities := newOpportunities(0.01, 0.02)

	embeddings, err := engine.Embed(context.Background(), opportunities)
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Len(t, embeddings[0].Vector, 4)
}

func TestFeatureEmbeddingEngine_FindSimilar_ExcludesSelfAndRespectsLimit(t *testing.T) {
	engine := NewFeatureEmbeddingEngine()
	reference := Embedding{OpportunityID: "ref", Vector: []float64{0, 0, 0, 0}}
	candidates := []Embedding{
		{OpportunityID: "ref", Vector: []float64{0, 0, 0, 0}},
		{OpportunityID: "near", Vector: []float64{1, 0, 0, 0}},
		{OpportunityID: "far", Vector: []float64{10, 0, 0, 0}},
	}

	similar, err := engine.FindSimilar(context.Background(), reference, 1, candidates)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "near", similar[0].OpportunityID)
}

func TestStaticModelRouter_UnknownCapabilityFallsBackToStandard(t *testing.T) {
	router := NewStaticModelRouter()
	decision, err := router.Route(context.Background(), RoutingRequirements{Capability: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, "opportunity-scorer-standard", decision.Model)
}

func TestPersonalizationEngine_RankSortsDescending(t *testing.T) {
	engine := NewPersonalizationEngine()
	opportunities := newOpportunities(0.01, 0.05, 0.03)

	ranked, err := engine.Rank(context.Background(), "user-1", opportunities)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

func TestPersonalizationEngine_AcceptedInteractionBoostsFutureScore(t *testing.T) {
	engine := NewPersonalizationEngine()
	ctx := context.Background()

	before, err := engine.Rank(ctx, "user-1", newOpportunities(0.01))
	require.NoError(t, err)

	require.NoError(t, engine.RecordInteraction(ctx, UserInteraction{UserID: "user-1", Kind: InteractionAccepted}))

	after, err := engine.Rank(ctx, "user-1", newOpportunities(0.01))
	require.NoError(t, err)

	assert.Greater(t, after[0].Score, before[0].Score)
}
