package enhancement

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/ai"
	"github.com/aristath/arbitrage-platform/internal/aicache"
	"github.com/aristath/arbitrage-platform/internal/cache"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

func newTestCoordinator(t *testing.T) *ai.Coordinator {
	t.Helper()
	c, err := cache.New(cache.NewMemoryStore(), cache.DefaultCompressionConfig())
	require.NoError(t, err)
	ac := aicache.New(c)

	coord, err := ai.NewCoordinator(ai.DefaultCoordinatorConfig(), ac, ai.NewFeatureEmbeddingEngine(), ai.NewStaticModelRouter(), ai.NewPersonalizationEngine(), zerolog.Nop())
	require.NoError(t, err)
	return coord
}

func newTestOpportunity(t *testing.T, id, pair string, rateDiff, profit float64) domain.ArbitrageOpportunity {
	t.Helper()
	opp, err := domain.New(id, pair, domain.ExchangeBinance, domain.ExchangeBybit, rateDiff, 1000, domain.ArbitrageFundingRate)
	require.NoError(t, err)
	opp.WithPotentialProfit(profit)
	return *opp
}

type stubAccessResolver struct {
	level AccessLevel
	err   error
}

func (s *stubAccessResolver) ResolveAccessLevel(context.Context, string) (AccessLevel, error) {
	return s.level, s.err
}

type stubPriceSeries struct {
	closes []float64
	err    error
}

func (s *stubPriceSeries) GetRecentCloses(context.Context, string, int) ([]float64, error) {
	return s.closes, s.err
}

type stubReliability struct {
	score float64
	err   error
}

func (s *stubReliability) GetPairReliability(context.Context, string) (float64, error) {
	return s.score, s.err
}

func risingCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEnhancer_AccessNonePassesThroughUnmodified(t *testing.T) {
	cfg := HighThroughput()
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessNone}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 100.0, *out[0].PotentialProfitValue)
	assert.Nil(t, out[0].Details)
}

func TestEnhancer_AccessResolutionFailureFallsBack(t *testing.T) {
	cfg := HighThroughput()
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{err: errors.New("resolver down")}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 100.0, *out[0].PotentialProfitValue)
}

func TestEnhancer_AppliesRiskAdjustedProfitMultiplier(t *testing.T) {
	cfg := HighThroughput()
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	opps := []domain.ArbitrageOpportunity{
		newTestOpportunity(t, "op-1", "BTC/USDT", 0.05, 100),
		newTestOpportunity(t, "op-2", "BTC/USDT", 0.01, 100),
	}
	out, err := e.EnhanceForUser(context.Background(), "user-1", opps)
	require.NoError(t, err)
	require.Len(t, out, 2)

	for _, o := range out {
		require.NotNil(t, o.PotentialProfitValue)
		assert.GreaterOrEqual(t, *o.PotentialProfitValue, 50.0)
		assert.LessOrEqual(t, *o.PotentialProfitValue, 150.0)
		require.NotNil(t, o.Details)
		assert.Contains(t, *o.Details, "ai_confidence=")
	}
}

type failingPersonalization struct{}

func (failingPersonalization) Rank(context.Context, string, []domain.ArbitrageOpportunity) ([]ai.RankedOpportunity, error) {
	return nil, errors.New("personalization down")
}

func (failingPersonalization) RecordInteraction(context.Context, ai.UserInteraction) error {
	return errors.New("personalization down")
}

func TestEnhancer_RankingFailureFallsBackToUnmodifiedBatch(t *testing.T) {
	c, err := cache.New(cache.NewMemoryStore(), cache.DefaultCompressionConfig())
	require.NoError(t, err)
	aiCfg := ai.DefaultCoordinatorConfig()
	aiCfg.FallbackOnError = false
	coord, err := ai.NewCoordinator(aiCfg, aicache.New(c), ai.NewFeatureEmbeddingEngine(), ai.NewStaticModelRouter(), failingPersonalization{}, zerolog.Nop())
	require.NoError(t, err)
	cfg := HighThroughput()
	e, err := New(cfg, coord, nil, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.02, 50)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 50.0, *out[0].PotentialProfitValue)
}

func TestEnhancer_TechnicalGateSkippedWhenProvidersNil(t *testing.T) {
	cfg := DefaultConfig()
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestEnhancer_TechnicalGateSkippedWhenDisabled(t *testing.T) {
	cfg := HighThroughput()
	prices := &stubPriceSeries{closes: []float64{1, 2, 3}}
	reliability := &stubReliability{score: 0.1}
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, prices, reliability, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1, "disabled gate must not drop opportunities regardless of reliability")
}

func TestEnhancer_TechnicalGateDropsBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 5
	cfg.SMAPeriod = 5
	cfg.MinTechnicalConfidence = 0.99 // unreachable floor forces a drop
	prices := &stubPriceSeries{closes: risingCloses(30, 100, 0.1)}
	reliability := &stubReliability{score: 0.5}
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, prices, reliability, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEnhancer_TechnicalGatePassesAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 5
	cfg.SMAPeriod = 5
	cfg.MinTechnicalConfidence = 0.0
	prices := &stubPriceSeries{closes: risingCloses(30, 100, 0.1)}
	reliability := &stubReliability{score: 0.8}
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, prices, reliability, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].PotentialProfitValue)
}

func TestEnhancer_TechnicalGateKeepsOpportunityOnLookupFailure(t *testing.T) {
	cfg := DefaultConfig()
	prices := &stubPriceSeries{err: errors.New("price feed unavailable")}
	reliability := &stubReliability{score: 0.5}
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, prices, reliability, zerolog.Nop())
	require.NoError(t, err)

	opp := newTestOpportunity(t, "op-1", "BTC/USDT", 0.01, 100)
	out, err := e.EnhanceForUser(context.Background(), "user-1", []domain.ArbitrageOpportunity{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestEnhancer_EmptyBatchReturnsEmpty(t *testing.T) {
	e, err := New(DefaultConfig(), newTestCoordinator(t), nil, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	out, err := e.EnhanceForUser(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEnhancer_EnhanceForUsersFansOutConcurrently(t *testing.T) {
	cfg := HighThroughput()
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	batch := map[string][]domain.ArbitrageOpportunity{
		"user-1": {newTestOpportunity(t, "op-1", "BTC/USDT", 0.02, 100)},
		"user-2": {newTestOpportunity(t, "op-2", "ETH/USDT", 0.03, 200)},
		"user-3": {newTestOpportunity(t, "op-3", "SOL/USDT", 0.01, 50)},
	}

	out, err := e.EnhanceForUsers(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for user, opps := range batch {
		require.Len(t, out[user], len(opps))
	}
}

func TestEnhancer_EnhanceForUsersKeepsResultWithTechnicalGateEnabled(t *testing.T) {
	cfg := DefaultConfig()
	prices := &stubPriceSeries{closes: risingCloses(30, 100, 0.1)}
	reliability := &stubReliability{score: 0.8}
	e, err := New(cfg, newTestCoordinator(t), &stubAccessResolver{level: AccessStandard}, prices, reliability, zerolog.Nop())
	require.NoError(t, err)

	batch := map[string][]domain.ArbitrageOpportunity{
		"user-1": {newTestOpportunity(t, "op-1", "BTC/USDT", 0.02, 100)},
	}
	out, err := e.EnhanceForUsers(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out["user-1"], 1)
}

func TestEnhancer_RejectsNilCoordinator(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, nil, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestEnhancer_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 0
	_, err := New(cfg, newTestCoordinator(t), nil, nil, nil, zerolog.Nop())
	require.Error(t, err)
}
