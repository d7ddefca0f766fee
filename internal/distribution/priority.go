package distribution

import (
	"context"
	"time"

	"github.com/aristath/arbitrage-platform/internal/domain"
)

// opportunityPriorityScore is rate_difference*1000 + profit*0.1 + 50,
// decayed by max(1 - 0.01*age_minutes, 0.5) and clamped to >= 0.
func opportunityPriorityScore(opp domain.ArbitrageOpportunity, detectedAt, now time.Time) float64 {
	var profit float64
	if opp.PotentialProfitValue != nil {
		profit = *opp.PotentialProfitValue
	}
	score := opp.RateDifference*1000 + profit*0.1 + 50

	ageMinutes := now.Sub(detectedAt).Minutes()
	decay := 1 - 0.01*ageMinutes
	if decay < 0.5 {
		decay = 0.5
	}
	score *= decay

	if score < 0 {
		score = 0
	}
	return score
}

// userPriorityScore ranks one candidate recipient for the
// priority-based fairness strategy: a base weight of 1.0, a 20% boost
// once more than 24h have elapsed since their last delivery, further
// scaled by an optional subscription-tier multiplier hook.
func userPriorityScore(ctx context.Context, s Session, now time.Time, tierMultiplier SubscriptionTierMultiplier) (float64, error) {
	score := 1.0
	if !s.LastOpportunity.IsZero() && now.Sub(s.LastOpportunity) > 24*time.Hour {
		score *= 1.2
	} else if s.LastOpportunity.IsZero() {
		score *= 1.2
	}

	if tierMultiplier != nil {
		m, err := tierMultiplier(ctx, s.UserID, s.SubscriptionTier)
		if err != nil {
			return 0, err
		}
		score *= m
	}
	return score, nil
}
