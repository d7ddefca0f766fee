package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
)

// FundSnapshotRepository is the concrete fundmonitor.HistoryRecorder:
// it durably stores every priced balance snapshot so a fund's
// allocation history survives past the cache's snapshot_ttl_seconds.
type FundSnapshotRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewFundSnapshotRepository creates a new fund snapshot repository.
func NewFundSnapshotRepository(db *database.DB, log zerolog.Logger) *FundSnapshotRepository {
	return &FundSnapshotRepository{db: db, log: log.With().Str("repository", "fund_snapshot").Logger()}
}

// RecordSnapshot implements fundmonitor.HistoryRecorder.
func (r *FundSnapshotRepository) RecordSnapshot(ctx context.Context, snap fundmonitor.Snapshot) error {
	balancesJSON, err := json.Marshal(snap.Balances)
	if err != nil {
		return apperr.New(apperr.SerializationError, "repository.FundSnapshotRepository.RecordSnapshot", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO fund_snapshots (user_id, venue, balances_json, total_usd, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, snap.UserID, snap.Venue, string(balancesJSON), snap.TotalUSD, snap.At.Format(time.RFC3339))
	if err != nil {
		return apperr.New(apperr.Internal, "repository.FundSnapshotRepository.RecordSnapshot", err)
	}
	return nil
}

// History returns the most recent snapshots for one (user, venue)
// pair, newest first, bounded at limit.
func (r *FundSnapshotRepository) History(ctx context.Context, userID, venue string, limit int) ([]fundmonitor.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, venue, balances_json, total_usd, recorded_at
		FROM fund_snapshots WHERE user_id = ? AND venue = ?
		ORDER BY recorded_at DESC LIMIT ?
	`, userID, venue, limit)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "repository.FundSnapshotRepository.History", err)
	}
	defer rows.Close()

	var out []fundmonitor.Snapshot
	for rows.Next() {
		var (
			snap         fundmonitor.Snapshot
			balancesJSON string
			recordedAt   string
		)
		if err := rows.Scan(&snap.UserID, &snap.Venue, &balancesJSON, &snap.TotalUSD, &recordedAt); err != nil {
			return nil, apperr.New(apperr.Internal, "repository.FundSnapshotRepository.History", err)
		}
		if err := json.Unmarshal([]byte(balancesJSON), &snap.Balances); err != nil {
			return nil, apperr.New(apperr.SerializationError, "repository.FundSnapshotRepository.History", err)
		}
		snap.At, err = time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, apperr.New(apperr.Internal, "repository.FundSnapshotRepository.History", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.Internal, "repository.FundSnapshotRepository.History", err)
	}
	return out, nil
}

// Prune deletes snapshots older than olderThan for every user/venue.
func (r *FundSnapshotRepository) Prune(ctx context.Context, olderThan time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM fund_snapshots WHERE recorded_at < ?`, olderThan.Format(time.RFC3339))
	if err != nil {
		return apperr.New(apperr.Internal, "repository.FundSnapshotRepository.Prune", err)
	}
	return nil
}
