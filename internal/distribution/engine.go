package distribution

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/cache"
	"github.com/aristath/arbitrage-platform/internal/domain"
	"github.com/aristath/arbitrage-platform/internal/events"
)

const (
	analyticsCacheTTL = 30 * 24 * time.Hour
	hourCounterTTL     = time.Hour
	dayCounterTTL       = 24 * time.Hour
	lastOpportunityTTL = 24 * time.Hour
)

// Engine selects recipients for a detected opportunity, enforces
// per-user delivery caps, and records the resulting analytics.
type Engine struct {
	cfg      Config
	cache    *cache.Cache
	sessions SessionService
	sender   NotificationSender
	recorder AnalyticsRecorder
	eventMgr *events.Manager
	tierMul  SubscriptionTierMultiplier
	log      zerolog.Logger
}

// New builds an Engine. recorder and eventMgr may be nil; tierMul may
// be nil, in which case every subscription tier carries a 1.0
// multiplier.
func New(cfg Config, c *cache.Cache, sessions SessionService, sender NotificationSender, recorder AnalyticsRecorder, eventMgr *events.Manager, tierMul SubscriptionTierMultiplier, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		cache:    c,
		sessions: sessions,
		sender:   sender,
		recorder: recorder,
		eventMgr: eventMgr,
		tierMul:  tierMul,
		log:      log.With().Str("service", "distribution_engine").Logger(),
	}, nil
}

// DistributeOpportunity wraps opp in a GlobalOpportunity, selects
// recipients per strategy, delivers subject to per-user rate limits,
// and records the round's analytics.
func (e *Engine) DistributeOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity, strategy domain.DistributionStrategy, detectedAt, expiresAt time.Time) (Result, error) {
	now := time.Now()
	global := &domain.GlobalOpportunity{
		Opportunity:   opp,
		DetectedAt:    detectedAt,
		ExpiresAt:     expiresAt,
		PriorityScore: opportunityPriorityScore(opp, detectedAt, now),
		Strategy:      strategy,
		Source:        domain.SourceSystem,
	}

	candidates, err := e.eligibleCandidates(ctx, global)
	if err != nil {
		return Result{}, err
	}

	selected, err := e.selectByStrategy(ctx, strategy, candidates, now)
	if err != nil {
		return Result{}, err
	}

	notified := 0
	skipped := 0
	for _, s := range selected {
		if notified >= e.cfg.BatchSize {
			break
		}
		if !global.CanAcceptParticipant(s.UserID) {
			continue
		}

		admitted, err := e.checkRateLimit(ctx, s.UserID, now)
		if err != nil {
			return Result{}, err
		}
		if !admitted {
			skipped++
			continue
		}

		if err := e.sender.SendOpportunityNotification(ctx, s.ChatID, global); err != nil {
			e.log.Warn().Str("user_id", s.UserID).Err(err).Msg("opportunity notification failed")
			skipped++
			continue
		}

		if err := e.recordDelivery(ctx, s.UserID, now); err != nil {
			return Result{}, err
		}
		global.MarkDistributed(s.UserID)
		notified++
	}

	record := AnalyticsRecord{
		OpportunityID: global.Opportunity.ID,
		Strategy:      strategy,
		UsersNotified: notified,
		UsersSkipped:  skipped,
		RecordedAt:    now,
	}
	if err := e.recordAnalytics(ctx, record); err != nil {
		return Result{}, err
	}

	if e.eventMgr != nil {
		e.eventMgr.Emit(events.OpportunityDistributed, "distribution", map[string]interface{}{
			"opportunity_id": global.Opportunity.ID,
			"users_notified": notified,
			"strategy":       string(strategy),
		})
	}

	return Result{UsersNotified: notified, UsersSkipped: skipped, Record: record}, nil
}

// eligibleCandidates walks active sessions page by page, running each
// through the session service's push-eligibility predicate. Chat
// context is treated as private at this stage.
func (e *Engine) eligibleCandidates(ctx context.Context, global *domain.GlobalOpportunity) ([]Session, error) {
	var out []Session
	offset := 0
	for {
		page, err := e.sessions.ListActiveSessions(ctx, offset, e.cfg.SessionPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, s := range page {
			eligible, err := e.sessions.IsEligibleForPushNotification(ctx, s.UserID, global, true)
			if err != nil {
				return nil, err
			}
			if eligible {
				out = append(out, s)
			}
		}
		if len(page) < e.cfg.SessionPageSize {
			break
		}
		offset += e.cfg.SessionPageSize
	}
	return out, nil
}

// selectByStrategy applies the fairness algorithm for strategy,
// returning at most BatchSize candidates in delivery order.
func (e *Engine) selectByStrategy(ctx context.Context, strategy domain.DistributionStrategy, candidates []Session, now time.Time) ([]Session, error) {
	switch strategy {
	case domain.StrategyFCFS:
		return capped(candidates, e.cfg.BatchSize), nil

	case domain.StrategyRoundRobin:
		sorted := append([]Session(nil), candidates...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].LastOpportunity.Before(sorted[j].LastOpportunity)
		})
		return capped(sorted, e.cfg.BatchSize), nil

	case domain.StrategyPriorityBased:
		type scored struct {
			session Session
			score   float64
		}
		ranked := make([]scored, 0, len(candidates))
		for _, s := range candidates {
			score, err := userPriorityScore(ctx, s, now, e.tierMul)
			if err != nil {
				return nil, err
			}
			ranked = append(ranked, scored{session: s, score: score})
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
		out := make([]Session, 0, len(ranked))
		for _, r := range ranked {
			out = append(out, r.session)
		}
		return capped(out, e.cfg.BatchSize), nil

	case domain.StrategyBroadcast:
		return capped(candidates, e.cfg.BatchSize), nil

	default:
		return capped(candidates, e.cfg.BatchSize), nil
	}
}

func capped(sessions []Session, n int) []Session {
	if len(sessions) <= n {
		return sessions
	}
	return sessions[:n]
}

// checkRateLimit admits userID only if both the hour and day counters
// are below their configured maximums. It does not itself mutate
// state; counters are only incremented on a successful send.
func (e *Engine) checkRateLimit(ctx context.Context, userID string, now time.Time) (bool, error) {
	hourCount, err := e.readCounter(ctx, hourLimitKey(userID, now))
	if err != nil {
		return false, err
	}
	if hourCount >= e.cfg.MaxPerHour {
		return false, nil
	}
	dayCount, err := e.readCounter(ctx, dayLimitKey(userID, now))
	if err != nil {
		return false, err
	}
	if dayCount >= e.cfg.MaxPerDay {
		return false, nil
	}
	return true, nil
}

// recordDelivery increments both rate-limit counters and updates the
// user's last-opportunity timestamp, in that order, after a
// successful send.
func (e *Engine) recordDelivery(ctx context.Context, userID string, now time.Time) error {
	if err := e.incrementCounter(ctx, hourLimitKey(userID, now), hourCounterTTL); err != nil {
		return err
	}
	if err := e.incrementCounter(ctx, dayLimitKey(userID, now), dayCounterTTL); err != nil {
		return err
	}
	return e.cache.Set(ctx, lastOpportunityKey(userID), []byte(strconv.FormatInt(now.Unix(), 10)), lastOpportunityTTL)
}

func (e *Engine) readCounter(ctx context.Context, key string) (int, error) {
	raw, found, err := e.cache.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (e *Engine) incrementCounter(ctx context.Context, key string, ttl time.Duration) error {
	n, err := e.readCounter(ctx, key)
	if err != nil {
		return err
	}
	return e.cache.Set(ctx, key, []byte(strconv.Itoa(n+1)), ttl)
}

func (e *Engine) recordAnalytics(ctx context.Context, rec AnalyticsRecord) error {
	payload := []byte(fmt.Sprintf(`{"opportunity_id":%q,"strategy":%q,"users_notified":%d,"users_skipped":%d,"recorded_at":%q}`,
		rec.OpportunityID, rec.Strategy, rec.UsersNotified, rec.UsersSkipped, rec.RecordedAt.UTC().Format(time.RFC3339)))
	if err := e.cache.Set(ctx, analyticsCacheKey(rec.OpportunityID), payload, analyticsCacheTTL); err != nil {
		return err
	}
	if e.recorder != nil {
		return e.recorder.RecordDistribution(ctx, rec)
	}
	return nil
}

func hourLimitKey(userID string, at time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%s", userID, at.UTC().Format("2006-01-02-15"))
}

func dayLimitKey(userID string, at time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%s", userID, at.UTC().Format("2006-01-02"))
}

func lastOpportunityKey(userID string) string {
	return fmt.Sprintf("last_opportunity:%s", userID)
}

func analyticsCacheKey(opportunityID string) string {
	return fmt.Sprintf("distribution_analytics:%s", opportunityID)
}
