package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/distribution"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

// DistributionAnalyticsRepository is the concrete
// distribution.AnalyticsRecorder: it durably stores each round's
// delivery analytics record.
type DistributionAnalyticsRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewDistributionAnalyticsRepository creates a new analytics repository.
func NewDistributionAnalyticsRepository(db *database.DB, log zerolog.Logger) *DistributionAnalyticsRepository {
	return &DistributionAnalyticsRepository{db: db, log: log.With().Str("repository", "distribution_analytics").Logger()}
}

// RecordDistribution implements distribution.AnalyticsRecorder.
func (r *DistributionAnalyticsRepository) RecordDistribution(ctx context.Context, rec distribution.AnalyticsRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO distribution_analytics (opportunity_id, strategy, users_notified, users_skipped, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.OpportunityID, string(rec.Strategy), rec.UsersNotified, rec.UsersSkipped, rec.RecordedAt.Format(time.RFC3339))
	if err != nil {
		return apperr.New(apperr.Internal, "repository.DistributionAnalyticsRepository.RecordDistribution", err)
	}
	return nil
}

// ListByOpportunity returns every recorded round for one opportunity,
// most recent first.
func (r *DistributionAnalyticsRepository) ListByOpportunity(ctx context.Context, opportunityID string) ([]distribution.AnalyticsRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT opportunity_id, strategy, users_notified, users_skipped, recorded_at
		FROM distribution_analytics WHERE opportunity_id = ? ORDER BY recorded_at DESC
	`, opportunityID)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "repository.DistributionAnalyticsRepository.ListByOpportunity", err)
	}
	defer rows.Close()

	var out []distribution.AnalyticsRecord
	for rows.Next() {
		var (
			rec        distribution.AnalyticsRecord
			strategy   string
			recordedAt string
		)
		if err := rows.Scan(&rec.OpportunityID, &strategy, &rec.UsersNotified, &rec.UsersSkipped, &recordedAt); err != nil {
			return nil, apperr.New(apperr.Internal, "repository.DistributionAnalyticsRepository.ListByOpportunity", err)
		}
		rec.Strategy = domain.DistributionStrategy(strategy)
		rec.RecordedAt, err = time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, apperr.New(apperr.Internal, "repository.DistributionAnalyticsRepository.ListByOpportunity", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.Internal, "repository.DistributionAnalyticsRepository.ListByOpportunity", err)
	}
	return out, nil
}

// AggregateSince returns the total users notified and skipped across
// every round recorded since the given time, for dashboard-style
// rollups.
func (r *DistributionAnalyticsRepository) AggregateSince(ctx context.Context, since time.Time) (notified, skipped int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(users_notified), 0), COALESCE(SUM(users_skipped), 0)
		FROM distribution_analytics WHERE recorded_at >= ?
	`, since.Format(time.RFC3339))
	if scanErr := row.Scan(&notified, &skipped); scanErr != nil {
		return 0, 0, apperr.New(apperr.Internal, "repository.DistributionAnalyticsRepository.AggregateSince", scanErr)
	}
	return notified, skipped, nil
}
