package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/aicache"
	"github.com/aristath/arbitrage-platform/internal/cache"
	"github.com/aristath/arbitrage-platform/internal/circuitbreaker"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

type failingEmbeddingEngine struct{ err error }

func (f *failingEmbeddingEngine) Embed(context.Context, []domain.ArbitrageOpportunity) ([]Embedding, error) {
	return nil, f.err
}
func (f *failingEmbeddingEngine) FindSimilar(context.Context, Embedding, int, []Embedding) ([]Embedding, error) {
	return nil, f.err
}

type failingPersonalizationEngine struct{ err error }

func (f *failingPersonalizationEngine) Rank(context.Context, string, []domain.ArbitrageOpportunity) ([]RankedOpportunity, error) {
	return nil, f.err
}
func (f *failingPersonalizationEngine) RecordInteraction(context.Context, UserInteraction) error {
	return f.err
}

func newOpportunities(rateDiffs ...float64) []domain.ArbitrageOpportunity {
	out := make([]domain.ArbitrageOpportunity, 0, len(rateDiffs))
	for i, rd := range rateDiffs {
		opp, _ := domain.New("op", "BTC/USDT", domain.ExchangeBinance, domain.ExchangeBybit, rd, 1000, domain.ArbitrageFundingRate)
		opp.ID = string(rune('a' + i))
		out = append(out, *opp)
	}
	return out
}

func newTestCoordinator(t *testing.T, cfg CoordinatorConfig, embedding EmbeddingEngine, router ModelRouter, personalization PersonalizationEngine) *Coordinator {
	t.Helper()
	c, err := cache.New(cache.NewMemoryStore(), cache.DefaultCompressionConfig())
	require.NoError(t, err)
	ac := aicache.New(c)

	coord, err := NewCoordinator(cfg, ac, embedding, router, personalization, zerolog.Nop())
	require.NoError(t, err)
	return coord
}

func TestCoordinator_FallbackRanking_ScenarioFromSpec(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	coord := newTestCoordinator(t, cfg, NewFeatureEmbeddingEngine(), NewStaticModelRouter(), NewPersonalizationEngine())
	coord.SetFeatureEnabled(false) // personalization disabled

	opportunities := newOpportunities(0.01, 0.05, 0.03)
	ranked, err := coord.Rank(context.Background(), "user-1", opportunities)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.InDelta(t, 0.005, ranked[0].Score, 1e-9)
	assert.InDelta(t, 0.003, ranked[1].Score, 1e-9)
	assert.InDelta(t, 0.001, ranked[2].Score, 1e-9)
}

func TestCoordinator_CircuitOpensAndRecovers(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	cfg.Breaker = circuitbreaker.Config{Threshold: 3, Cooldown: 20 * time.Millisecond}
	cfg.FallbackOnError = true

	failing := &failingEmbeddingEngine{err: errors.New("downstream unavailable")}
	coord := newTestCoordinator(t, cfg, failing, NewStaticModelRouter(), NewPersonalizationEngine())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := coord.Embed(ctx, newOpportunities(0.01))
		require.NoError(t, err) // fallback swallows the error
	}
	assert.Equal(t, circuitbreaker.Open, coord.breaker.State())

	// While open, calls short-circuit without invoking downstream.
	result, err := coord.Embed(ctx, newOpportunities(0.01))
	require.NoError(t, err)
	assert.Empty(t, result)

	time.Sleep(25 * time.Millisecond)

	// half-open probe still uses the failing engine but we swap it to succeed
	coord.embedding = NewFeatureEmbeddingEngine()
	result, err = coord.Embed(ctx, newOpportunities(0.01))
	require.NoError(t, err)
	assert.NotEmpty(t, result)
	assert.Equal(t, circuitbreaker.Closed, coord.breaker.State())
}

func TestCoordinator_RateLimitExceeded(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	cfg.MaxConcurrentRequests = 1

	coord := newTestCoordinator(t, cfg, NewFeatureEmbeddingEngine(), NewStaticModelRouter(), NewPersonalizationEngine())
	release, err := coord.reserveSlot()
	require.NoError(t, err)
	defer release()

	_, err = coord.reserveSlot()
	require.Error(t, err)
}

func TestCoordinator_RouteFallback(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	coord := newTestCoordinator(t, cfg, NewFeatureEmbeddingEngine(), NewStaticModelRouter(), NewPersonalizationEngine())
	coord.SetFeatureEnabled(false)

	decision, err := coord.Route(context.Background(), RoutingRequirements{Capability: "premium"})
	require.NoError(t, err)
	assert.True(t, decision.Fallback)
	assert.Less(t, decision.Confidence, 0.5)
}

func TestCoordinator_HealthCheck(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	coord := newTestCoordinator(t, cfg, NewFeatureEmbeddingEngine(), NewStaticModelRouter(), NewPersonalizationEngine())

	health := coord.HealthCheck(context.Background())
	assert.True(t, health.Healthy)
	assert.Equal(t, "closed", health.CircuitBreakerState)
}
