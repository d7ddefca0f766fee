// Package distribution implements the opportunity distribution engine
// (C9): wraps a detected opportunity, filters eligible recipients,
// applies a fairness strategy, enforces per-user rate limits, and
// records delivery analytics.
package distribution

import (
	"context"
	"time"

	"github.com/aristath/arbitrage-platform/internal/domain"
)

// Session is one active user session known to the caller's session
// layer, bounded and paged at the source.
type Session struct {
	UserID           string
	ChatID           string
	LastOpportunity  time.Time
	SubscriptionTier string
}

// SessionService resolves the set of candidate recipients for a
// distribution round and their per-user push eligibility.
type SessionService interface {
	// ListActiveSessions returns one bounded page of active sessions,
	// ordered by session age (oldest first), starting at offset.
	ListActiveSessions(ctx context.Context, offset, limit int) ([]Session, error)

	// IsEligibleForPushNotification applies the session's eligibility
	// predicate. private is always true at the distribution-engine
	// eligibility stage, per the push-notification chat context.
	IsEligibleForPushNotification(ctx context.Context, userID string, opp *domain.GlobalOpportunity, private bool) (bool, error)
}

// NotificationSender delivers the opportunity notification to one
// recipient's chat context.
type NotificationSender interface {
	SendOpportunityNotification(ctx context.Context, chatID string, opp *domain.GlobalOpportunity) error
}

// SubscriptionTierMultiplier resolves the priority-score multiplier
// for a user's subscription tier. The zero value (nil) leaves every
// tier at 1.0, per the spec's "hook" wording for this factor.
type SubscriptionTierMultiplier func(ctx context.Context, userID, tier string) (float64, error)

// AnalyticsRecord is the per-distribution-round summary persisted to
// cache and handed to the analytics repository.
type AnalyticsRecord struct {
	OpportunityID string    `json:"opportunity_id"`
	Strategy      domain.DistributionStrategy `json:"strategy"`
	UsersNotified int       `json:"users_notified"`
	UsersSkipped  int       `json:"users_skipped"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// AnalyticsRecorder persists a distribution round's analytics record
// to durable storage (C12's distribution-analytics repository).
type AnalyticsRecorder interface {
	RecordDistribution(ctx context.Context, rec AnalyticsRecord) error
}

// Result is the outcome of one DistributeOpportunity call.
type Result struct {
	UsersNotified int
	UsersSkipped  int
	Record        AnalyticsRecord
}
