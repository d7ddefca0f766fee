package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
)

// TrackedAccount identifies one (user, venue) pair the platform polls
// for balance snapshots.
type TrackedAccount struct {
	UserID string
	Venue  string
}

// FundSnapshotRefreshJob periodically re-fetches and records a
// balance snapshot for every tracked account, keeping the fund
// monitor's cache warm and the snapshot history current even when no
// distribution request has touched an account recently.
type FundSnapshotRefreshJob struct {
	monitor  *fundmonitor.Monitor
	accounts []TrackedAccount
	log      zerolog.Logger
}

// NewFundSnapshotRefreshJob creates a new fund snapshot refresh job.
func NewFundSnapshotRefreshJob(monitor *fundmonitor.Monitor, accounts []TrackedAccount, log zerolog.Logger) *FundSnapshotRefreshJob {
	return &FundSnapshotRefreshJob{
		monitor:  monitor,
		accounts: accounts,
		log:      log.With().Str("job", "fund_snapshot_refresh").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *FundSnapshotRefreshJob) Name() string {
	return "fund_snapshot_refresh"
}

// Run fetches a fresh snapshot for every tracked account. GetSnapshot
// records history as a side effect, so no further repository call is
// needed here.
func (j *FundSnapshotRefreshJob) Run() error {
	ctx := context.Background()
	errs := 0

	for _, acct := range j.accounts {
		if _, err := j.monitor.GetSnapshot(ctx, acct.UserID, acct.Venue); err != nil {
			j.log.Error().Err(err).Str("user_id", acct.UserID).Str("venue", acct.Venue).Msg("failed to refresh fund snapshot")
			errs++
		}
	}

	if errs > 0 && errs == len(j.accounts) {
		return fmt.Errorf("fund snapshot refresh failed for all %d tracked accounts", errs)
	}
	return nil
}
