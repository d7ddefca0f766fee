package enhancement

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/ai"
	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

// Enhancer consumes the AI coordinator (C4) to risk-adjust a user's
// opportunity batch, with a safe pass-through fallback, and optionally
// filters the result through a market-structure-plus-reliability
// technical-confirmation gate.
type Enhancer struct {
	cfg         Config
	coordinator *ai.Coordinator
	access      AccessResolver
	prices      PriceSeriesProvider
	reliability ReliabilityProvider
	log         zerolog.Logger
}

// New builds an Enhancer. prices and reliability may be nil, in which
// case the technical-confirmation gate is always skipped regardless of
// cfg.EnableTechnicalGate.
func New(cfg Config, coordinator *ai.Coordinator, access AccessResolver, prices PriceSeriesProvider, reliability ReliabilityProvider, log zerolog.Logger) (*Enhancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if coordinator == nil {
		return nil, apperr.New(apperr.ConfigError, "enhancement.New", configErr("coordinator must not be nil"))
	}
	return &Enhancer{
		cfg:         cfg,
		coordinator: coordinator,
		access:      access,
		prices:      prices,
		reliability: reliability,
		log:         log.With().Str("service", "opportunity_enhancer").Logger(),
	}, nil
}

// candidate pairs an opportunity with the AI confidence assigned to it
// (or the neutral prior, if AI ranking was skipped or fell back), so
// the technical gate's final convex combination has both terms.
type candidate struct {
	opp          domain.ArbitrageOpportunity
	aiConfidence float64
}

const neutralAIConfidence = 0.75

// EnhanceForUser resolves the user's AI access, ranks the batch
// through the coordinator when access allows it, and runs the
// technical-confirmation gate. On any AI failure it falls back to the
// unmodified input for that user rather than dropping the batch.
func (e *Enhancer) EnhanceForUser(ctx context.Context, userID string, opportunities []domain.ArbitrageOpportunity) ([]domain.ArbitrageOpportunity, error) {
	if len(opportunities) == 0 {
		return opportunities, nil
	}

	candidates := e.applyAIRanking(ctx, userID, opportunities)
	return e.applyTechnicalGate(ctx, candidates), nil
}

// EnhanceForUsers fans the batch out concurrently across users —
// mixed batches (one call per user) run independently so one user's
// AI failure or slow technical lookup never blocks another's.
func (e *Enhancer) EnhanceForUsers(ctx context.Context, userOpportunities map[string][]domain.ArbitrageOpportunity) (map[string][]domain.ArbitrageOpportunity, error) {
	type outcome struct {
		userID string
		result []domain.ArbitrageOpportunity
		err    error
	}

	results := make(chan outcome, len(userOpportunities))
	var wg sync.WaitGroup
	for userID, opps := range userOpportunities {
		wg.Add(1)
		go func(userID string, opps []domain.ArbitrageOpportunity) {
			defer wg.Done()
			result, err := e.EnhanceForUser(ctx, userID, opps)
			results <- outcome{userID: userID, result: result, err: err}
		}(userID, opps)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string][]domain.ArbitrageOpportunity, len(userOpportunities))
	var firstErr error
	for o := range results {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		out[o.userID] = o.result
	}
	return out, firstErr
}

// applyAIRanking resolves access, calls the coordinator, and applies
// the risk-adjusted profit multiplier. Any access-resolution or
// ranking failure falls back to the unmodified opportunities at the
// neutral AI confidence.
func (e *Enhancer) applyAIRanking(ctx context.Context, userID string, opportunities []domain.ArbitrageOpportunity) []candidate {
	passthrough := func() []candidate {
		out := make([]candidate, len(opportunities))
		for i, opp := range opportunities {
			out[i] = candidate{opp: opp, aiConfidence: neutralAIConfidence}
		}
		return out
	}

	if e.access != nil {
		level, err := e.access.ResolveAccessLevel(ctx, userID)
		if err != nil || level == AccessNone {
			return passthrough()
		}
	}

	ranked, err := e.coordinator.Rank(ctx, userID, opportunities)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", userID).Msg("AI ranking failed, passing through unmodified opportunities")
		return passthrough()
	}

	out := make([]candidate, 0, len(ranked))
	for _, r := range ranked {
		opp := r.Opportunity
		if opp.PotentialProfitValue != nil {
			multiplier := 0.5 + r.Score // risk-adjusted multiplier in [0.5, 1.5]
			adjusted := *opp.PotentialProfitValue * multiplier
			opp.PotentialProfitValue = &adjusted
		}
		details := fmt.Sprintf("ai_confidence=%.2f: %s", r.Confidence, r.Explanation)
		opp.Details = &details
		out = append(out, candidate{opp: opp, aiConfidence: r.Confidence})
	}
	return out
}

// applyTechnicalGate drops candidates below min_technical_confidence
// and scales the survivors' profit by the final convex-combination
// confidence. A candidate whose price/reliability lookup fails is kept
// unfiltered rather than dropped, since an unavailable confirmation
// signal is not evidence the opportunity is bad.
func (e *Enhancer) applyTechnicalGate(ctx context.Context, candidates []candidate) []domain.ArbitrageOpportunity {
	out := make([]domain.ArbitrageOpportunity, 0, len(candidates))
	for _, c := range candidates {
		if !e.cfg.EnableTechnicalGate || e.prices == nil || e.reliability == nil {
			out = append(out, c.opp)
			continue
		}

		final, keep, err := e.technicalConfidence(ctx, c.opp, c.aiConfidence)
		if err != nil {
			e.log.Warn().Err(err).Str("pair", c.opp.Pair).Msg("technical confirmation unavailable, keeping opportunity unfiltered")
			out = append(out, c.opp)
			continue
		}
		if !keep {
			continue
		}

		opp := c.opp
		if opp.PotentialProfitValue != nil {
			adjusted := *opp.PotentialProfitValue * final
			opp.PotentialProfitValue = &adjusted
		}
		out = append(out, opp)
	}
	return out
}

// technicalConfidence computes the market-structure-plus-reliability
// technical score, gates it against min_technical_confidence, and
// blends it with aiConfidence into the final convex combination.
func (e *Enhancer) technicalConfidence(ctx context.Context, opp domain.ArbitrageOpportunity, aiConfidence float64) (final float64, keep bool, err error) {
	closes, err := e.prices.GetRecentCloses(ctx, opp.Pair, e.cfg.SMAPeriod+e.cfg.RSIPeriod+1)
	if err != nil {
		return 0, false, err
	}
	structure, ok := structureScore(closes, e.cfg.RSIPeriod, e.cfg.SMAPeriod)
	if !ok {
		return 0, false, apperr.New(apperr.ValidationError, "enhancement.Enhancer.technicalConfidence", configErr("insufficient price history"))
	}

	reliability, err := e.reliability.GetPairReliability(ctx, opp.Pair)
	if err != nil {
		return 0, false, err
	}

	technical := e.cfg.StructureWeight*structure + (1-e.cfg.StructureWeight)*reliability
	if risk, ok := tailRiskScore(closes); ok && e.cfg.TailRiskPenalty > 0 {
		technical *= 1 - e.cfg.TailRiskPenalty*risk
	}
	if technical < e.cfg.MinTechnicalConfidence {
		return technical, false, nil
	}

	final = e.cfg.ArbitrageWeight*aiConfidence + (1-e.cfg.ArbitrageWeight)*technical
	return final, true, nil
}
