package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/ai"
	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
)

// AIInteractionRepository durably stores ai.UserInteraction records,
// giving the personalization engine's training signal a store that
// survives a process restart (the in-memory engine keeps only a
// running per-user weight, not the interactions themselves).
type AIInteractionRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewAIInteractionRepository creates a new AI interaction repository.
func NewAIInteractionRepository(db *database.DB, log zerolog.Logger) *AIInteractionRepository {
	return &AIInteractionRepository{db: db, log: log.With().Str("repository", "ai_interaction").Logger()}
}

// Record stores one interaction.
func (r *AIInteractionRepository) Record(ctx context.Context, interaction ai.UserInteraction) error {
	var outcome sql.NullFloat64
	if interaction.Outcome != nil {
		outcome = sql.NullFloat64{Float64: *interaction.Outcome, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_interactions (user_id, opportunity_id, kind, outcome, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, interaction.UserID, interaction.OpportunityID, string(interaction.Kind), outcome, interaction.Timestamp.Format(time.RFC3339))
	if err != nil {
		return apperr.New(apperr.Internal, "repository.AIInteractionRepository.Record", err)
	}
	return nil
}

// ListByUser returns a user's interactions, most recent first, bounded
// at limit.
func (r *AIInteractionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]ai.UserInteraction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, opportunity_id, kind, outcome, occurred_at
		FROM ai_interactions WHERE user_id = ? ORDER BY occurred_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "repository.AIInteractionRepository.ListByUser", err)
	}
	defer rows.Close()

	var out []ai.UserInteraction
	for rows.Next() {
		var (
			interaction ai.UserInteraction
			kind        string
			outcome     sql.NullFloat64
			occurredAt  string
		)
		if err := rows.Scan(&interaction.UserID, &interaction.OpportunityID, &kind, &outcome, &occurredAt); err != nil {
			return nil, apperr.New(apperr.Internal, "repository.AIInteractionRepository.ListByUser", err)
		}
		interaction.Kind = ai.InteractionKind(kind)
		if outcome.Valid {
			v := outcome.Float64
			interaction.Outcome = &v
		}
		interaction.Timestamp, err = time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return nil, apperr.New(apperr.Internal, "repository.AIInteractionRepository.ListByUser", err)
		}
		out = append(out, interaction)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.Internal, "repository.AIInteractionRepository.ListByUser", err)
	}
	return out, nil
}
