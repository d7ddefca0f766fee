package di

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/distribution"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

// StaticSessionService is a fixed-roster SessionService. The real
// session directory lives in the bot-framework layer this platform
// notifies, which is out of scope here; this adapter lets the engine
// run standalone against a configured user list.
type StaticSessionService struct {
	sessions []distribution.Session
}

// NewStaticSessionService creates a session service over a fixed list
// of users, each always eligible for push notifications.
func NewStaticSessionService(sessions []distribution.Session) *StaticSessionService {
	return &StaticSessionService{sessions: sessions}
}

// ListActiveSessions returns the page of sessions starting at offset.
func (s *StaticSessionService) ListActiveSessions(_ context.Context, offset, limit int) ([]distribution.Session, error) {
	if offset >= len(s.sessions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.sessions) {
		end = len(s.sessions)
	}
	return s.sessions[offset:end], nil
}

// IsEligibleForPushNotification always returns true: eligibility
// rules (quiet hours, opt-out) belong to the bot-framework layer.
func (s *StaticSessionService) IsEligibleForPushNotification(_ context.Context, _ string, _ *domain.GlobalOpportunity, _ bool) (bool, error) {
	return true, nil
}

// LogNotificationSender logs the notification that would have been
// sent. Actual delivery (chat bot, push service) is an external
// collaborator outside this platform's scope.
type LogNotificationSender struct {
	log zerolog.Logger
}

// NewLogNotificationSender creates a logging notification sender.
func NewLogNotificationSender(log zerolog.Logger) *LogNotificationSender {
	return &LogNotificationSender{log: log.With().Str("component", "notification_sender").Logger()}
}

// SendOpportunityNotification logs the delivery instead of performing one.
func (s *LogNotificationSender) SendOpportunityNotification(_ context.Context, chatID string, opp *domain.GlobalOpportunity) error {
	s.log.Info().
		Str("chat_id", chatID).
		Str("opportunity_id", opp.Opportunity.ID).
		Float64("priority_score", opp.PriorityScore).
		Msg("opportunity notification")
	return nil
}
