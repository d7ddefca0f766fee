package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/migration"
)

// MigrationRepository persists migration.Rollout state so a restarted
// process resumes rollouts from where they left off instead of
// re-running StartRollout from scratch.
type MigrationRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMigrationRepository creates a new migration repository.
func NewMigrationRepository(db *database.DB, log zerolog.Logger) *MigrationRepository {
	return &MigrationRepository{db: db, log: log.With().Str("repository", "migration").Logger()}
}

// Upsert inserts or replaces one rollout's full state.
func (r *MigrationRepository) Upsert(ctx context.Context, rollout migration.Rollout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO migrations (
			id, initial_pct, max_pct, increment,
			max_error_rate, max_latency_ms, min_success_rate, auto_rollback, grace_period_ms,
			phase, current_pct,
			error_rate, success_rate, latency_ms, metrics_reported_at,
			rollback_count, rollback_reason,
			created_at, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			initial_pct = excluded.initial_pct,
			max_pct = excluded.max_pct,
			increment = excluded.increment,
			max_error_rate = excluded.max_error_rate,
			max_latency_ms = excluded.max_latency_ms,
			min_success_rate = excluded.min_success_rate,
			auto_rollback = excluded.auto_rollback,
			grace_period_ms = excluded.grace_period_ms,
			phase = excluded.phase,
			current_pct = excluded.current_pct,
			error_rate = excluded.error_rate,
			success_rate = excluded.success_rate,
			latency_ms = excluded.latency_ms,
			metrics_reported_at = excluded.metrics_reported_at,
			rollback_count = excluded.rollback_count,
			rollback_reason = excluded.rollback_reason,
			started_at = excluded.started_at
	`,
		rollout.ID, rollout.Config.InitialPct, rollout.Config.MaxPct, rollout.Config.Increment,
		rollout.Safety.MaxErrorRate, rollout.Safety.MaxLatency.Milliseconds(), rollout.Safety.MinSuccessRate,
		rollout.Safety.AutoRollback, rollout.Safety.GracePeriod.Milliseconds(),
		string(rollout.Phase), rollout.CurrentPct,
		rollout.Metrics.ErrorRate, rollout.Metrics.SuccessRate, rollout.Metrics.Latency.Milliseconds(),
		nullableTimeString(rollout.Metrics.ReportedAt),
		rollout.RollbackCount, rollout.RollbackReason,
		rollout.CreatedAt.Format(time.RFC3339), nullableTimeString(rollout.StartedAt),
	)
	if err != nil {
		return apperr.New(apperr.Internal, "repository.MigrationRepository.Upsert", err)
	}
	return nil
}

// Get retrieves one rollout by id. The second return value is false
// if no such rollout exists.
func (r *MigrationRepository) Get(ctx context.Context, id string) (migration.Rollout, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, initial_pct, max_pct, increment,
			max_error_rate, max_latency_ms, min_success_rate, auto_rollback, grace_period_ms,
			phase, current_pct,
			error_rate, success_rate, latency_ms, metrics_reported_at,
			rollback_count, rollback_reason,
			created_at, started_at
		FROM migrations WHERE id = ?
	`, id)

	rollout, err := scanRollout(row.Scan)
	if err == sql.ErrNoRows {
		return migration.Rollout{}, false, nil
	}
	if err != nil {
		return migration.Rollout{}, false, apperr.New(apperr.Internal, "repository.MigrationRepository.Get", err)
	}
	return rollout, true, nil
}

// List returns every rollout, ordered by id.
func (r *MigrationRepository) List(ctx context.Context) ([]migration.Rollout, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, initial_pct, max_pct, increment,
			max_error_rate, max_latency_ms, min_success_rate, auto_rollback, grace_period_ms,
			phase, current_pct,
			error_rate, success_rate, latency_ms, metrics_reported_at,
			rollback_count, rollback_reason,
			created_at, started_at
		FROM migrations ORDER BY id
	`)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "repository.MigrationRepository.List", err)
	}
	defer rows.Close()

	var out []migration.Rollout
	for rows.Next() {
		rollout, err := scanRollout(rows.Scan)
		if err != nil {
			return nil, apperr.New(apperr.Internal, "repository.MigrationRepository.List", err)
		}
		out = append(out, rollout)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.Internal, "repository.MigrationRepository.List", err)
	}
	return out, nil
}

// Delete removes a rollout record.
func (r *MigrationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM migrations WHERE id = ?`, id); err != nil {
		return apperr.New(apperr.Internal, "repository.MigrationRepository.Delete", err)
	}
	return nil
}

func scanRollout(scan func(dest ...any) error) (migration.Rollout, error) {
	var (
		rollout                      migration.Rollout
		maxLatencyMs, latencyMs      int64
		gracePeriodMs                int64
		autoRollback                 bool
		phase                        string
		createdAt                    string
		startedAt, metricsReportedAt sql.NullString
	)

	err := scan(
		&rollout.ID, &rollout.Config.InitialPct, &rollout.Config.MaxPct, &rollout.Config.Increment,
		&rollout.Safety.MaxErrorRate, &maxLatencyMs, &rollout.Safety.MinSuccessRate, &autoRollback, &gracePeriodMs,
		&phase, &rollout.CurrentPct,
		&rollout.Metrics.ErrorRate, &rollout.Metrics.SuccessRate, &latencyMs, &metricsReportedAt,
		&rollout.RollbackCount, &rollout.RollbackReason,
		&createdAt, &startedAt,
	)
	if err != nil {
		return migration.Rollout{}, err
	}

	rollout.Phase = migration.Phase(phase)
	rollout.Safety.AutoRollback = autoRollback
	rollout.Safety.MaxLatency = time.Duration(maxLatencyMs) * time.Millisecond
	rollout.Safety.GracePeriod = time.Duration(gracePeriodMs) * time.Millisecond
	rollout.Metrics.Latency = time.Duration(latencyMs) * time.Millisecond

	if rollout.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return migration.Rollout{}, fmt.Errorf("parse created_at: %w", err)
	}
	if startedAt.Valid && startedAt.String != "" {
		if rollout.StartedAt, err = time.Parse(time.RFC3339, startedAt.String); err != nil {
			return migration.Rollout{}, fmt.Errorf("parse started_at: %w", err)
		}
	}
	if metricsReportedAt.Valid && metricsReportedAt.String != "" {
		if rollout.Metrics.ReportedAt, err = time.Parse(time.RFC3339, metricsReportedAt.String); err != nil {
			return migration.Rollout{}, fmt.Errorf("parse metrics_reported_at: %w", err)
		}
	}
	return rollout, nil
}

func nullableTimeString(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
